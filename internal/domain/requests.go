// Package domain defines the request, job and artifact models shared by the
// cache, scheduler, services and HTTP layers.
//
// Generation requests are a closed variant over four kinds (bin, baseplate,
// plate, plate-3mf). Every payload accepts camelCase and snake_case field
// names and fills documented defaults while decoding, so two semantically
// identical requests always decode to equal values.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Kind discriminates the GenerationRequest variant.
type Kind string

const (
	KindBin       Kind = "bin"
	KindBaseplate Kind = "baseplate"
	KindPlate     Kind = "plate"
	KindPlate3MF  Kind = "plate-3mf"
)

// Cacheable reports whether results of this kind are stored in the artifact
// cache. Plate kinds are assembled per request and never cached.
func (k Kind) Cacheable() bool { return k == KindBin || k == KindBaseplate }

// Dividers configures internal compartment walls of a bin.
type Dividers struct {
	Horizontal int `json:"horizontal" binding:"min=0,max=10"`
	Vertical   int `json:"vertical"   binding:"min=0,max=10"`
}

// BinSpec describes a single Gridfinity bin in grid units.
type BinSpec struct {
	Width         int      `json:"width"          binding:"required,min=1,max=10"`
	Depth         int      `json:"depth"          binding:"required,min=1,max=10"`
	Height        int      `json:"height"         binding:"required,min=1,max=20"`
	Type          string   `json:"type"           binding:"oneof=hollow solid"`
	WallThickness float64  `json:"wall_thickness" binding:"min=0.8,max=3"`
	Dividers      Dividers `json:"dividers"`
	Magnets       bool     `json:"magnets"`
	Stackable     bool     `json:"stackable"`
	FingerGrabs   bool     `json:"finger_grabs"`
	Label         *string  `json:"label,omitempty"`
}

// DefaultBinSpec returns a BinSpec with every optional field at its default.
func DefaultBinSpec() BinSpec {
	return BinSpec{
		Type:          "hollow",
		WallThickness: 1.2,
		Stackable:     true,
	}
}

// UnmarshalJSON decodes a bin accepting camelCase aliases and applying
// defaults for omitted fields.
func (b *BinSpec) UnmarshalJSON(data []byte) error {
	norm, err := normalizeKeys(data)
	if err != nil {
		return err
	}
	type plain BinSpec
	p := plain(DefaultBinSpec())
	if err := json.Unmarshal(norm, &p); err != nil {
		return err
	}
	*b = BinSpec(p)
	return nil
}

// BaseplateSpec describes a baseplate grid.
type BaseplateSpec struct {
	GridWidth  int  `json:"grid_width"  binding:"required,min=1,max=20"`
	GridDepth  int  `json:"grid_depth"  binding:"required,min=1,max=20"`
	HasMagnets bool `json:"has_magnets"`
}

// UnmarshalJSON decodes a baseplate accepting camelCase aliases.
func (b *BaseplateSpec) UnmarshalJSON(data []byte) error {
	norm, err := normalizeKeys(data)
	if err != nil {
		return err
	}
	type plain BaseplateSpec
	var p plain
	if err := json.Unmarshal(norm, &p); err != nil {
		return err
	}
	*b = BaseplateSpec(p)
	return nil
}

// ItemType selects which payload a plate item carries.
type ItemType string

const (
	ItemBin       ItemType = "bin"
	ItemBaseplate ItemType = "baseplate"
)

// PlateItem is one entry of a ZIP plate request. Exactly one of Bin and
// Baseplate is set when the item carries data; items without data are skipped.
type PlateItem struct {
	X         float64        `json:"x"`
	Y         float64        `json:"y"`
	Rotation  float64        `json:"rotation"`
	ItemType  ItemType       `json:"item_type" binding:"required,oneof=bin baseplate"`
	Bin       *BinSpec       `json:"-"`
	Baseplate *BaseplateSpec `json:"-"`
}

// UnmarshalJSON decodes the item and resolves bin_data by item_type.
func (it *PlateItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		X        float64         `json:"x"`
		Y        float64         `json:"y"`
		Rotation float64         `json:"rotation"`
		ItemType ItemType        `json:"item_type"`
		BinData  json.RawMessage `json:"bin_data"`
	}
	norm, err := normalizeKeys(data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(norm, &raw); err != nil {
		return err
	}
	*it = PlateItem{X: raw.X, Y: raw.Y, Rotation: raw.Rotation, ItemType: raw.ItemType}
	it.Bin, it.Baseplate, err = decodeItemData(raw.ItemType, raw.BinData)
	return err
}

// HasData reports whether the item carries a geometry payload.
func (it PlateItem) HasData() bool { return it.Bin != nil || it.Baseplate != nil }

// PlateSpec is a request for a ZIP archive with one STL per item.
type PlateSpec struct {
	Name  string      `json:"name"`
	Type  string      `json:"type"  binding:"oneof=baseplate bins reprint"`
	Items []PlateItem `json:"items" binding:"required,dive"`
}

// UnmarshalJSON decodes a plate request with defaults.
func (p *PlateSpec) UnmarshalJSON(data []byte) error {
	norm, err := normalizeKeys(data)
	if err != nil {
		return err
	}
	type plain PlateSpec
	v := plain{Name: "plate", Type: "bins"}
	if err := json.Unmarshal(norm, &v); err != nil {
		return err
	}
	*p = PlateSpec(v)
	return nil
}

// Plate3MFItem is one placement on a 3MF build plate. Positions are item
// centers in millimeters; rotation is in degrees about Z.
type Plate3MFItem struct {
	ItemType  ItemType       `json:"item_type" binding:"required,oneof=bin baseplate"`
	XMm       float64        `json:"x_mm"`
	YMm       float64        `json:"y_mm"`
	Rotation  float64        `json:"rotation"`
	Bin       *BinSpec       `json:"-"`
	Baseplate *BaseplateSpec `json:"-"`
}

// UnmarshalJSON decodes the item; bin_data is required for 3MF placements.
func (it *Plate3MFItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		ItemType ItemType        `json:"item_type"`
		XMm      float64         `json:"x_mm"`
		YMm      float64         `json:"y_mm"`
		Rotation float64         `json:"rotation"`
		BinData  json.RawMessage `json:"bin_data"`
	}
	norm, err := normalizeKeys(data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(norm, &raw); err != nil {
		return err
	}
	*it = Plate3MFItem{ItemType: raw.ItemType, XMm: raw.XMm, YMm: raw.YMm, Rotation: raw.Rotation}
	it.Bin, it.Baseplate, err = decodeItemData(raw.ItemType, raw.BinData)
	if err != nil {
		return err
	}
	if !it.HasData() && (raw.ItemType == ItemBin || raw.ItemType == ItemBaseplate) {
		return &ValidationError{Field: "bin_data", Reason: "is required"}
	}
	return nil
}

// HasData reports whether the item carries a geometry payload.
func (it Plate3MFItem) HasData() bool { return it.Bin != nil || it.Baseplate != nil }

// Plate3MFSpec is a request for a single 3MF scene with positioned items.
type Plate3MFSpec struct {
	Name       string         `json:"name"`
	BedWidthMm *float64       `json:"bed_width_mm,omitempty"`
	BedDepthMm *float64       `json:"bed_depth_mm,omitempty"`
	Items      []Plate3MFItem `json:"items" binding:"required,dive"`
}

// UnmarshalJSON decodes a 3MF plate request with defaults.
func (p *Plate3MFSpec) UnmarshalJSON(data []byte) error {
	norm, err := normalizeKeys(data)
	if err != nil {
		return err
	}
	type plain Plate3MFSpec
	v := plain{Name: "plate"}
	if err := json.Unmarshal(norm, &v); err != nil {
		return err
	}
	*p = Plate3MFSpec(v)
	return nil
}

// GenerationRequest is the closed variant consumed by the job registry.
// Exactly the payload matching Kind is non-nil.
type GenerationRequest struct {
	Kind      Kind
	Bin       *BinSpec
	Baseplate *BaseplateSpec
	Plate     *PlateSpec
	Plate3MF  *Plate3MFSpec
}

func NewBinRequest(s BinSpec) GenerationRequest {
	return GenerationRequest{Kind: KindBin, Bin: &s}
}

func NewBaseplateRequest(s BaseplateSpec) GenerationRequest {
	return GenerationRequest{Kind: KindBaseplate, Baseplate: &s}
}

func NewPlateRequest(s PlateSpec) GenerationRequest {
	return GenerationRequest{Kind: KindPlate, Plate: &s}
}

func NewPlate3MFRequest(s Plate3MFSpec) GenerationRequest {
	return GenerationRequest{Kind: KindPlate3MF, Plate3MF: &s}
}

// Validate checks that the payload matches Kind and that every field is in
// range. It returns a *ValidationError.
func (r GenerationRequest) Validate() error {
	var payload any
	switch r.Kind {
	case KindBin:
		if r.Bin != nil {
			payload = r.Bin
		}
	case KindBaseplate:
		if r.Baseplate != nil {
			payload = r.Baseplate
		}
	case KindPlate:
		if r.Plate != nil {
			payload = r.Plate
		}
	case KindPlate3MF:
		if r.Plate3MF != nil {
			payload = r.Plate3MF
		}
	default:
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", r.Kind)}
	}
	if payload == nil {
		return &ValidationError{Field: string(r.Kind), Reason: "payload is missing"}
	}
	return Validate(payload)
}

func decodeItemData(t ItemType, data json.RawMessage) (*BinSpec, *BaseplateSpec, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil, nil
	}
	switch t {
	case ItemBin:
		var b BinSpec
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, nil, err
		}
		return &b, nil, nil
	case ItemBaseplate:
		var b BaseplateSpec
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, nil, err
		}
		return nil, &b, nil
	}
	// Unknown item types are rejected by validation.
	return nil, nil, nil
}

// normalizeKeys rewrites the top-level keys of a JSON object to snake_case.
// When both spellings of a field are present the snake_case one wins.
func normalizeKeys(data []byte) ([]byte, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return data, nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		if snakeCase(k) == k {
			out[k] = v
		}
	}
	for k, v := range m {
		s := snakeCase(k)
		if s == k {
			continue
		}
		if _, taken := out[s]; !taken {
			out[s] = v
		}
	}
	return json.Marshal(out)
}

// snakeCase converts camelCase identifiers ("bedWidthMm") to snake_case
// ("bed_width_mm"). Already snake_case input is returned unchanged.
func snakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
