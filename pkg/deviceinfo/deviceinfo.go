// Package deviceinfo holds the DeviceInfo accumulator populated by the
// info poller across its seven-step interrogation sequence.
package deviceinfo

// MemoryRegion is an inclusive address range reported by the device as
// forbidden or read-only.
type MemoryRegion struct {
	Start uint64
	End   uint64
}

// FeatureMap reports which optional capabilities the device supports.
type FeatureMap struct {
	MemoryRead     bool
	MemoryWrite    bool
	DatalogAcquire bool
	UserCommand    bool
}

// DeviceInfo accumulates the capabilities of a single interrogation pass.
// Every field is a pointer (or nil slice) until the corresponding poller
// step populates it - option-per-field, per the teacher's preference for
// explicit presence over a single all-optional blob.
type DeviceInfo struct {
	ProtocolMajor *int
	ProtocolMinor *int

	MaxTxDataSize      *uint32
	MaxRxDataSize      *uint32
	MaxBitrateBps      *uint64
	RxTimeoutUs        *uint32
	HeartbeatTimeoutUs *uint32
	AddressSizeBits    *int

	SupportedFeatureMap *FeatureMap

	// ForbiddenMemoryRegions and ReadOnlyMemoryRegions are non-nil once
	// their respective poller step has started accumulating entries, even
	// if the count reported by the device was zero.
	ForbiddenMemoryRegions []MemoryRegion
	ReadOnlyMemoryRegions  []MemoryRegion
}

// ValidAddressSizes lists the address widths the server can decode.
var ValidAddressSizes = [4]int{8, 16, 32, 64}

// IsValidAddressSize reports whether bits is one of the supported widths.
func IsValidAddressSize(bits int) bool {
	for _, v := range ValidAddressSizes {
		if v == bits {
			return true
		}
	}
	return false
}

// AllReady reports whether every field has been populated by the poller.
func (d *DeviceInfo) AllReady() bool {
	if d == nil {
		return false
	}
	return d.ProtocolMajor != nil &&
		d.ProtocolMinor != nil &&
		d.MaxTxDataSize != nil &&
		d.MaxRxDataSize != nil &&
		d.MaxBitrateBps != nil &&
		d.RxTimeoutUs != nil &&
		d.HeartbeatTimeoutUs != nil &&
		d.AddressSizeBits != nil &&
		d.SupportedFeatureMap != nil &&
		d.ForbiddenMemoryRegions != nil &&
		d.ReadOnlyMemoryRegions != nil
}

// Clone returns a deep copy, matching the "returns a copy" contract used
// throughout the device-interaction core (get_device_info, etc.).
func (d *DeviceInfo) Clone() *DeviceInfo {
	if d == nil {
		return &DeviceInfo{}
	}
	clone := *d
	if d.ProtocolMajor != nil {
		v := *d.ProtocolMajor
		clone.ProtocolMajor = &v
	}
	if d.ProtocolMinor != nil {
		v := *d.ProtocolMinor
		clone.ProtocolMinor = &v
	}
	if d.MaxTxDataSize != nil {
		v := *d.MaxTxDataSize
		clone.MaxTxDataSize = &v
	}
	if d.MaxRxDataSize != nil {
		v := *d.MaxRxDataSize
		clone.MaxRxDataSize = &v
	}
	if d.MaxBitrateBps != nil {
		v := *d.MaxBitrateBps
		clone.MaxBitrateBps = &v
	}
	if d.RxTimeoutUs != nil {
		v := *d.RxTimeoutUs
		clone.RxTimeoutUs = &v
	}
	if d.HeartbeatTimeoutUs != nil {
		v := *d.HeartbeatTimeoutUs
		clone.HeartbeatTimeoutUs = &v
	}
	if d.AddressSizeBits != nil {
		v := *d.AddressSizeBits
		clone.AddressSizeBits = &v
	}
	if d.SupportedFeatureMap != nil {
		fm := *d.SupportedFeatureMap
		clone.SupportedFeatureMap = &fm
	}
	if d.ForbiddenMemoryRegions != nil {
		clone.ForbiddenMemoryRegions = append([]MemoryRegion(nil), d.ForbiddenMemoryRegions...)
	}
	if d.ReadOnlyMemoryRegions != nil {
		clone.ReadOnlyMemoryRegions = append([]MemoryRegion(nil), d.ReadOnlyMemoryRegions...)
	}
	return &clone
}
