package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// binJSON renders a bin in either snake_case or camelCase spelling, emitting
// fields that equal their default only when explicit is true.
func binJSON(b BinSpec, camel, explicit bool) string {
	name := func(snake, cam string) string {
		if camel {
			return cam
		}
		return snake
	}
	fields := []string{
		fmt.Sprintf(`"width":%d`, b.Width),
		fmt.Sprintf(`"height":%d`, b.Height),
		fmt.Sprintf(`"depth":%d`, b.Depth),
	}
	def := DefaultBinSpec()
	if explicit || b.Type != def.Type {
		fields = append(fields, fmt.Sprintf(`"type":%q`, b.Type))
	}
	if explicit || b.WallThickness != def.WallThickness {
		fields = append(fields, fmt.Sprintf(`"%s":%v`, name("wall_thickness", "wallThickness"), b.WallThickness))
	}
	if explicit || b.Stackable != def.Stackable {
		fields = append(fields, fmt.Sprintf(`"stackable":%v`, b.Stackable))
	}
	if explicit || b.FingerGrabs {
		fields = append(fields, fmt.Sprintf(`"%s":%v`, name("finger_grabs", "fingerGrabs"), b.FingerGrabs))
	}
	if explicit || b.Magnets {
		fields = append(fields, fmt.Sprintf(`"magnets":%v`, b.Magnets))
	}
	if explicit || b.Dividers != (Dividers{}) {
		fields = append(fields, fmt.Sprintf(`"dividers":{"horizontal":%d,"vertical":%d}`, b.Dividers.Horizontal, b.Dividers.Vertical))
	}
	if camel {
		// reverse order to also vary field order
		for i, j := 0, len(fields)-1; i < j; i, j = i+1, j-1 {
			fields[i], fields[j] = fields[j], fields[i]
		}
	}
	return "{" + strings.Join(fields, ",") + "}"
}

func genBin() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(1, 10),
		gen.IntRange(1, 10),
		gen.IntRange(1, 20),
		gen.OneConstOf("hollow", "solid"),
		gen.OneConstOf(0.8, 1.2, 1.6, 2.0, 3.0),
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
	).Map(func(v []interface{}) BinSpec {
		return BinSpec{
			Width:         v[0].(int),
			Depth:         v[1].(int),
			Height:        v[2].(int),
			Type:          v[3].(string),
			WallThickness: v[4].(float64),
			Dividers:      Dividers{Horizontal: v[5].(int), Vertical: v[6].(int)},
			Magnets:       v[7].(bool),
			Stackable:     v[8].(bool),
			FingerGrabs:   v[9].(bool),
		}
	})
}

func TestProperty_BinKeyIgnoresSpellingAndDefaults(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("alias/order/default-equivalent requests share a key", prop.ForAll(
		func(b BinSpec) bool {
			var snake, camel BinSpec
			if err := json.Unmarshal([]byte(binJSON(b, false, false)), &snake); err != nil {
				return false
			}
			if err := json.Unmarshal([]byte(binJSON(b, true, true)), &camel); err != nil {
				return false
			}
			return BinKey(snake) == BinKey(camel) && BinKey(snake) == BinKey(b)
		},
		genBin(),
	))

	properties.Property("any semantic change changes the key", prop.ForAll(
		func(b BinSpec, field int) bool {
			m := b
			switch field {
			case 0:
				m.Width = b.Width%10 + 1
			case 1:
				m.Depth = b.Depth%10 + 1
			case 2:
				m.Height = b.Height%20 + 1
			case 3:
				m.Magnets = !b.Magnets
			case 4:
				m.Stackable = !b.Stackable
			case 5:
				m.FingerGrabs = !b.FingerGrabs
			case 6:
				m.WallThickness = b.WallThickness + 0.1
			case 7:
				m.Dividers.Vertical = (b.Dividers.Vertical + 1) % 11
			case 8:
				label := "spares"
				m.Label = &label
			}
			return BinKey(b) != BinKey(m)
		},
		genBin(),
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}

func TestDeriveKey_Variants(t *testing.T) {
	bp := BaseplateSpec{GridWidth: 3, GridDepth: 4}
	var camel BaseplateSpec
	if err := json.Unmarshal([]byte(`{"gridDepth":4,"gridWidth":3,"hasMagnets":false}`), &camel); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	k := DeriveKey(NewBaseplateRequest(bp))
	if k != DeriveKey(NewBaseplateRequest(camel)) {
		t.Fatalf("baseplate aliases changed the key")
	}
	if !strings.HasPrefix(string(k), "baseplate-") || len(k) != len("baseplate-")+keyDigestLen {
		t.Fatalf("unexpected key format %q", k)
	}
	bp.HasMagnets = true
	if DeriveKey(NewBaseplateRequest(bp)) == k {
		t.Fatalf("has_magnets must change the key")
	}

	// Identical numbers under different kinds never collide.
	bin := BinSpec{Width: 3, Depth: 4, Height: 1, Type: "hollow", WallThickness: 1.2}
	if DeriveKey(NewBinRequest(bin)) == k {
		t.Fatalf("kind prefix missing")
	}

	empty := ""
	withBlank := bin
	withBlank.Label = &empty
	if BinKey(bin) != BinKey(withBlank) {
		t.Fatalf("blank label should equal no label")
	}

	if DeriveKey(NewPlateRequest(PlateSpec{})) != "" {
		t.Fatalf("plate requests must not derive a cache key")
	}
}
