package cases

import (
	"testing"
	"time"
)

func TestKindProperties(t *testing.T) {
	for _, k := range Kinds {
		if !k.Valid() {
			t.Errorf("%s should be valid", k)
		}
	}
	if Kind("bogus").Valid() {
		t.Errorf("unknown kind reported valid")
	}

	timed := map[Kind]bool{KindMute: true, KindBan: true, KindChannelBan: true}
	for _, k := range Kinds {
		if k.Timed() != timed[k] {
			t.Errorf("%s.Timed() = %v", k, k.Timed())
		}
	}

	inverses := map[Kind]Kind{
		KindMute:       KindUnmute,
		KindBan:        KindUnban,
		KindChannelBan: KindChannelUnban,
	}
	for _, k := range Kinds {
		if k.Inverse() != inverses[k] {
			t.Errorf("%s.Inverse() = %s", k, k.Inverse())
		}
	}

	if !KindChannelBan.ChannelScoped() || !KindChannelUnban.ChannelScoped() {
		t.Errorf("channel kinds must be channel scoped")
	}
	if KindMute.ChannelScoped() {
		t.Errorf("mute is guild wide")
	}
}

func TestRecordExpiry(t *testing.T) {
	created := time.Unix(1700000000, 0)
	record := Record{CreatedAt: created.Unix(), Duration: 3600}

	if record.ExpiredAt(created.Add(30 * time.Minute)) {
		t.Errorf("expired half way through")
	}
	if record.ExpiredAt(created.Add(time.Hour)) {
		t.Errorf("expiry is strict; still live at exactly one hour")
	}
	if !record.ExpiredAt(created.Add(time.Hour + time.Second)) {
		t.Errorf("not expired past the boundary")
	}
	if got := record.Remaining(created.Add(45 * time.Minute)); got != 900 {
		t.Errorf("Remaining = %d, want 900", got)
	}
	if got := record.Remaining(created.Add(2 * time.Hour)); got != 0 {
		t.Errorf("Remaining after expiry = %d, want 0", got)
	}

	permanent := Record{CreatedAt: created.Unix(), Duration: Permanent}
	if permanent.ExpiredAt(created.Add(100 * 365 * 24 * time.Hour)) {
		t.Errorf("permanent record expired")
	}
	if permanent.Remaining(created) != Permanent {
		t.Errorf("permanent remaining should report the sentinel")
	}

	durationless := Record{CreatedAt: created.Unix()}
	if durationless.ExpiredAt(created.Add(time.Hour)) {
		t.Errorf("record without duration expired")
	}
}
