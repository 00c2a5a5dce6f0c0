package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeBin(t *testing.T, s string) BinSpec {
	t.Helper()
	var b BinSpec
	if err := json.Unmarshal([]byte(s), &b); err != nil {
		t.Fatalf("unmarshal %s: %v", s, err)
	}
	return b
}

func TestBinSpec_DefaultsAndAliases(t *testing.T) {
	b := decodeBin(t, `{"width":2,"depth":3,"height":4}`)
	want := DefaultBinSpec()
	want.Width, want.Depth, want.Height = 2, 3, 4
	if b.Type != want.Type || b.WallThickness != want.WallThickness || !b.Stackable || b.Magnets || b.FingerGrabs || b.Label != nil {
		t.Fatalf("defaults not applied: %+v", b)
	}

	camel := decodeBin(t, `{"width":2,"depth":3,"height":4,"wallThickness":2.0,"fingerGrabs":true}`)
	snake := decodeBin(t, `{"finger_grabs":true,"wall_thickness":2,"height":4,"depth":3,"width":2}`)
	if camel.WallThickness != 2 || !camel.FingerGrabs {
		t.Fatalf("camelCase aliases ignored: %+v", camel)
	}
	if BinKey(camel) != BinKey(snake) {
		t.Fatalf("alias spelling changed the key")
	}
}

func TestNormalizeKeys_SnakeCaseWins(t *testing.T) {
	b := decodeBin(t, `{"width":1,"depth":1,"height":1,"wallThickness":2.5,"wall_thickness":1.5}`)
	if b.WallThickness != 1.5 {
		t.Fatalf("expected snake_case to win, got %v", b.WallThickness)
	}
}

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"bedWidthMm":    "bed_width_mm",
		"xMm":           "x_mm",
		"grid_width":    "grid_width",
		"itemType":      "item_type",
		"HasMagnets":    "has_magnets",
		"width":         "width",
		"Items[0]":      "items[0]",
		"wallThickness": "wall_thickness",
	}
	for in, want := range cases {
		if got := snakeCase(in); got != want {
			t.Fatalf("snakeCase(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestPlateItem_ResolvesBinDataByType(t *testing.T) {
	var p PlateSpec
	body := `{"items":[
		{"itemType":"bin","binData":{"width":1,"depth":2,"height":3}},
		{"item_type":"baseplate","bin_data":{"gridWidth":4,"gridDepth":5,"hasMagnets":true},"x":10,"y":20,"rotation":90},
		{"itemType":"bin"}
	]}`
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Name != "plate" || p.Type != "bins" {
		t.Fatalf("plate defaults not applied: %+v", p)
	}
	if len(p.Items) != 3 {
		t.Fatalf("items = %d", len(p.Items))
	}
	if p.Items[0].Bin == nil || p.Items[0].Bin.Height != 3 || p.Items[0].Baseplate != nil {
		t.Fatalf("bin item not resolved: %+v", p.Items[0])
	}
	bp := p.Items[1].Baseplate
	if bp == nil || bp.GridWidth != 4 || bp.GridDepth != 5 || !bp.HasMagnets || p.Items[1].Rotation != 90 {
		t.Fatalf("baseplate item not resolved: %+v", p.Items[1])
	}
	if p.Items[2].HasData() {
		t.Fatalf("item without bin_data should carry no payload")
	}
	if err := NewPlateRequest(p).Validate(); err != nil {
		t.Fatalf("valid plate rejected: %v", err)
	}
}

func TestPlate3MFItem_RequiresBinData(t *testing.T) {
	var p Plate3MFSpec
	err := json.Unmarshal([]byte(`{"items":[{"itemType":"bin","xMm":1}]}`), &p)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "bin_data" {
		t.Fatalf("expected bin_data validation error, got %v", err)
	}

	err = json.Unmarshal([]byte(`{"name":"desk","bedWidthMm":256,"items":[{"itemType":"bin","binData":{"width":1,"depth":1,"height":2},"xMm":21,"yMm":21,"rotation":90}]}`), &p)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Name != "desk" || p.BedWidthMm == nil || *p.BedWidthMm != 256 || p.BedDepthMm != nil {
		t.Fatalf("unexpected plate: %+v", p)
	}
	if it := p.Items[0]; it.XMm != 21 || it.YMm != 21 || it.Rotation != 90 || it.Bin == nil {
		t.Fatalf("unexpected item: %+v", it)
	}
}

func TestValidate_Ranges(t *testing.T) {
	cases := []struct {
		name  string
		req   GenerationRequest
		field string
	}{
		{"width too big", NewBinRequest(BinSpec{Width: 11, Depth: 1, Height: 1, Type: "hollow", WallThickness: 1.2}), "width"},
		{"missing height", NewBinRequest(BinSpec{Width: 1, Depth: 1, Type: "hollow", WallThickness: 1.2}), "height"},
		{"bad type", NewBinRequest(BinSpec{Width: 1, Depth: 1, Height: 1, Type: "open", WallThickness: 1.2}), "type"},
		{"thin wall", NewBinRequest(BinSpec{Width: 1, Depth: 1, Height: 1, Type: "solid", WallThickness: 0.5}), "wall_thickness"},
		{"dividers", NewBinRequest(BinSpec{Width: 1, Depth: 1, Height: 1, Type: "solid", WallThickness: 1, Dividers: Dividers{Vertical: 11}}), "dividers.vertical"},
		{"baseplate", NewBaseplateRequest(BaseplateSpec{GridWidth: 21, GridDepth: 1}), "grid_width"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("field = %q; want %q (%v)", ve.Field, tc.field, err)
			}
		})
	}

	if err := (GenerationRequest{Kind: "cube"}).Validate(); err == nil {
		t.Fatalf("unknown kind should fail validation")
	}
	if err := (GenerationRequest{Kind: KindBin}).Validate(); err == nil || !strings.Contains(err.Error(), "payload") {
		t.Fatalf("missing payload should fail validation, got %v", err)
	}
}

func TestFilenames(t *testing.T) {
	label := "Größe: M3/M4 screws!!"
	b := BinSpec{Width: 2, Depth: 1, Height: 3, Type: "hollow", Label: &label}
	if got := BinFilename(b, -1); got != "bin-2x1x3-hollow-Groe M3M4 screws.stl" {
		t.Fatalf("BinFilename = %q", got)
	}
	b.Label = nil
	if got := BinFilename(b, 4); got != "bin-2x1x3-hollow-4.stl" {
		t.Fatalf("BinFilename with index = %q", got)
	}
	if got := BaseplateFilename(BaseplateSpec{GridWidth: 5, GridDepth: 4}); got != "baseplate-5x4.stl" {
		t.Fatalf("BaseplateFilename = %q", got)
	}
	if got := PlateFilename("  ", "3mf"); got != "plate.3mf" {
		t.Fatalf("PlateFilename fallback = %q", got)
	}
	if got := PlateFilename("my desk", "zip"); got != "my desk.zip" {
		t.Fatalf("PlateFilename = %q", got)
	}
}
