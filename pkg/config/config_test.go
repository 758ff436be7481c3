package config

import (
	"strings"
	"testing"
)

func TestFromObjAppliesDefaults(t *testing.T) {
	o := Obj{
		"data_root": "/data",
		"game_name": "tictactoe",
	}
	opts, err := FromObj(o)
	if err != nil {
		t.Fatalf("FromObj: %v", err)
	}
	if opts.DataRoot != "/data" || opts.GameName != "tictactoe" {
		t.Errorf("opts = %+v, want data_root/game_name carried through", opts)
	}
	if opts.VariantID != "default" {
		t.Errorf("VariantID = %q, want default", opts.VariantID)
	}
	if !opts.PositionSymmetry || !opts.TierSymmetry || !opts.UseRetrograde {
		t.Error("symmetry/retrograde options should default to true")
	}
	if opts.CodecBlockSize != DefaultCodecBlockSize {
		t.Errorf("CodecBlockSize = %d, want %d", opts.CodecBlockSize, DefaultCodecBlockSize)
	}
	if opts.Workers != 1 {
		t.Errorf("Workers = %d, want 1", opts.Workers)
	}
}

func TestFromObjMissingRequiredKey(t *testing.T) {
	o := Obj{"game_name": "tictactoe"}
	if _, err := FromObj(o); err == nil {
		t.Fatal("FromObj should fail when data_root is missing")
	} else if !strings.Contains(err.Error(), "data_root") {
		t.Errorf("error = %v, want it to mention data_root", err)
	}
}

func TestFromObjRejectsUnknownKey(t *testing.T) {
	o := Obj{
		"data_root": "/data",
		"game_name": "tictactoe",
		"bogus_key": "oops",
	}
	if _, err := FromObj(o); err == nil {
		t.Fatal("FromObj should fail on an unrecognized key")
	} else if !strings.Contains(err.Error(), "bogus_key") {
		t.Errorf("error = %v, want it to mention bogus_key", err)
	}
}

func TestFromObjWrongType(t *testing.T) {
	o := Obj{
		"data_root": "/data",
		"game_name": "tictactoe",
		"workers":   "not-a-number",
	}
	if _, err := FromObj(o); err == nil {
		t.Fatal("FromObj should fail when workers is not a number")
	}
}

func TestDefaultOptions(t *testing.T) {
	d := Default()
	if d.DBName != "db" || d.StatusStore != "fs" {
		t.Errorf("Default() = %+v, want db_name=db status_store=fs", d)
	}
}
