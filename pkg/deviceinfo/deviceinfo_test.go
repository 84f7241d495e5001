package deviceinfo

import "testing"

func intp(v int) *int       { return &v }
func u32p(v uint32) *uint32 { return &v }
func u64p(v uint64) *uint64 { return &v }

func fullyPopulated() *DeviceInfo {
	return &DeviceInfo{
		ProtocolMajor:          intp(1),
		ProtocolMinor:          intp(0),
		MaxTxDataSize:          u32p(128),
		MaxRxDataSize:          u32p(128),
		MaxBitrateBps:          u64p(115200),
		RxTimeoutUs:            u32p(50000),
		HeartbeatTimeoutUs:     u32p(4000000),
		AddressSizeBits:        intp(32),
		SupportedFeatureMap:    &FeatureMap{MemoryRead: true, MemoryWrite: true, DatalogAcquire: true, UserCommand: true},
		ForbiddenMemoryRegions: []MemoryRegion{{Start: 0x1000, End: 0x1FFF}},
		ReadOnlyMemoryRegions:  []MemoryRegion{{Start: 0x2000, End: 0x2FFF}},
	}
}

func TestAllReady_TrueWhenEveryFieldPopulated(t *testing.T) {
	info := fullyPopulated()
	if !info.AllReady() {
		t.Fatal("expected AllReady to be true")
	}
}

func TestAllReady_FalseOnNilInfo(t *testing.T) {
	var info *DeviceInfo
	if info.AllReady() {
		t.Fatal("expected AllReady to be false on nil")
	}
}

func TestAllReady_FalseWhenAnyFieldMissing(t *testing.T) {
	fields := []func(*DeviceInfo){
		func(d *DeviceInfo) { d.ProtocolMajor = nil },
		func(d *DeviceInfo) { d.AddressSizeBits = nil },
		func(d *DeviceInfo) { d.SupportedFeatureMap = nil },
		func(d *DeviceInfo) { d.ForbiddenMemoryRegions = nil },
		func(d *DeviceInfo) { d.ReadOnlyMemoryRegions = nil },
	}
	for _, clear := range fields {
		info := fullyPopulated()
		clear(info)
		if info.AllReady() {
			t.Fatal("expected AllReady to be false when a field is missing")
		}
	}
}

func TestClone_IsIndependentOfOriginal(t *testing.T) {
	info := fullyPopulated()
	clone := info.Clone()

	*clone.ProtocolMajor = 2
	clone.ForbiddenMemoryRegions[0].Start = 0xDEAD

	if *info.ProtocolMajor != 1 {
		t.Fatal("mutating clone leaked into original scalar field")
	}
	if info.ForbiddenMemoryRegions[0].Start != 0x1000 {
		t.Fatal("mutating clone leaked into original slice field")
	}
}

func TestIsValidAddressSize(t *testing.T) {
	valid := []int{8, 16, 32, 64}
	for _, v := range valid {
		if !IsValidAddressSize(v) {
			t.Fatalf("expected %d to be valid", v)
		}
	}
	if IsValidAddressSize(24) {
		t.Fatal("expected 24 to be invalid")
	}
}
