package devicehandler

import (
	"fmt"

	"github.com/scrutinydebugger/scrutiny-go/pkg/link"
)

func newLink(linkType LinkType, linkConfig any) (link.Link, error) {
	switch linkType {
	case LinkNone, "":
		return link.NoneLink{}, nil
	case LinkUDP:
		return link.NewUDPLink(), nil
	case LinkDummy, LinkThreadSafeDummy:
		dl, ok := linkConfig.(*link.DummyLink)
		if !ok {
			return nil, fmt.Errorf("devicehandler: %s link requires link_config to be a pre-paired *link.DummyLink, got %T", linkType, linkConfig)
		}
		return dl, nil
	default:
		return nil, fmt.Errorf("devicehandler: unknown link_type %q", linkType)
	}
}
