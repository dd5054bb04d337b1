package peers

import (
	"fmt"
	"testing"

	cm "github.com/mosaicnetworks/overlay/src/common"
)

func testDirectories(t *testing.T) map[string]Directory {
	return map[string]Directory{
		"inmem":  NewInmemDirectory(),
		"badger": newTestBadgerDirectory(t),
	}
}

func TestDirectoryMerge(t *testing.T) {
	for name, dir := range testDirectories(t) {
		if _, err := dir.Add(NewRecord("10.0.0.1", 11625)); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if err := dir.RecordFailure("10.0.0.1", 11625); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if err := dir.RecordFailure("10.0.0.1", 11625); err != nil {
			t.Fatalf("%s: %v", name, err)
		}

		incoming := []*Record{
			{IP: "10.0.0.1", Port: 11625},                 // known
			{IP: "10.0.0.2", Port: 11625, NumFailures: 9}, // new
			{IP: "10.0.0.2", Port: 11625},                 // duplicate of the previous
			{IP: "10.0.0.3", Port: 11626},                 // new
			{IP: "", Port: 11625},                         // invalid
			{IP: "10.0.0.4", Port: 0},                     // invalid
		}

		added, err := dir.Merge(incoming)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if added != 2 {
			t.Fatalf("%s: Merge should add 2 records, not %d", name, added)
		}
		if dir.Len() != 3 {
			t.Fatalf("%s: directory should hold 3 records, not %d", name, dir.Len())
		}

		known, err := dir.Get("10.0.0.1", 11625)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if known.NumFailures != 2 {
			t.Fatalf("%s: Merge should preserve failure counters, got %d", name, known.NumFailures)
		}

		learned, err := dir.Get("10.0.0.2", 11625)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if learned.NumFailures != 0 {
			t.Fatalf("%s: learned records should start without failures, got %d", name, learned.NumFailures)
		}
	}
}

func TestDirectoryRanking(t *testing.T) {
	for name, dir := range testDirectories(t) {
		for i := 1; i <= 3; i++ {
			dir.Add(NewRecord(fmt.Sprintf("10.0.0.%d", i), 11625))
		}

		dir.RecordFailure("10.0.0.1", 11625)
		dir.RecordFailure("10.0.0.1", 11625)
		dir.RecordFailure("10.0.0.2", 11625)

		records := dir.Records()
		expected := []string{"10.0.0.3", "10.0.0.2", "10.0.0.1"}
		for i, r := range records {
			if r.IP != expected[i] {
				t.Fatalf("%s: records[%d] should be %s, not %s", name, i, expected[i], r.IP)
			}
		}

		if err := dir.ResetFailures("10.0.0.1", 11625); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if r := dir.Records()[0]; r.IP != "10.0.0.1" {
			t.Fatalf("%s: 10.0.0.1 should rank first after reset, not %s", name, r.IP)
		}

		// Records are copies
		records = dir.Records()
		records[0].NumFailures = 100
		if r, _ := dir.Get(records[0].IP, records[0].Port); r.NumFailures == 100 {
			t.Fatalf("%s: mutating a returned record should not affect the directory", name)
		}
	}
}

func TestDirectoryUnknown(t *testing.T) {
	for name, dir := range testDirectories(t) {
		if _, err := dir.Get("10.9.9.9", 1); !cm.IsStore(err, cm.KeyNotFound) {
			t.Fatalf("%s: expected KeyNotFound, got %v", name, err)
		}
		if err := dir.RecordFailure("10.9.9.9", 1); !cm.IsStore(err, cm.KeyNotFound) {
			t.Fatalf("%s: expected KeyNotFound, got %v", name, err)
		}
		if _, err := dir.Add(&Record{IP: "not-an-ip", Port: 1}); err == nil {
			t.Fatalf("%s: invalid records should be refused", name)
		}
	}
}

func TestNewRecordFromAddr(t *testing.T) {
	r, err := NewRecordFromAddr("127.0.0.1:11625")
	if err != nil {
		t.Fatal(err)
	}
	if r.IP != "127.0.0.1" || r.Port != 11625 {
		t.Fatalf("unexpected record %#v", r)
	}
	if r.ID == 0 {
		t.Fatalf("record ID should be computed")
	}
	if _, err := NewRecordFromAddr("127.0.0.1"); err == nil {
		t.Fatalf("an address without port should be refused")
	}
}

func TestDirectoryMappedIPv4(t *testing.T) {
	if r := NewRecord("::ffff:10.0.0.1", 11625); r.IP != "10.0.0.1" {
		t.Fatalf("IPv4-mapped address should be normalized, got %s", r.IP)
	}

	for name, dir := range testDirectories(t) {
		if _, err := dir.Add(NewRecord("10.0.0.1", 11625)); err != nil {
			t.Fatal(err)
		}

		added, err := dir.Add(&Record{IP: "::ffff:10.0.0.1", Port: 11625})
		if err != nil {
			t.Fatal(err)
		}
		if added {
			t.Fatalf("%s: mapped form of a known address should not be added", name)
		}

		n, err := dir.Merge([]*Record{{IP: "::ffff:10.0.0.1", Port: 11625}})
		if err != nil {
			t.Fatal(err)
		}
		if n != 0 || dir.Len() != 1 {
			t.Fatalf("%s: merge should not duplicate, added %d, len %d", name, n, dir.Len())
		}

		if err := dir.RecordFailure("::ffff:10.0.0.1", 11625); err != nil {
			t.Fatalf("%s: lookup by mapped form should succeed: %v", name, err)
		}
		r, err := dir.Get("10.0.0.1", 11625)
		if err != nil {
			t.Fatal(err)
		}
		if r.NumFailures != 1 {
			t.Fatalf("%s: failure should apply to the single record, got %d", name, r.NumFailures)
		}
	}
}
