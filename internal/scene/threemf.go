package scene

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"
)

const (
	coreNamespace = "http://schemas.microsoft.com/3dmanufacturing/core/2015/02"
	application   = "Gridfinity Server"

	contentTypesXML = `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml" />
  <Default Extension="model" ContentType="application/vnd.ms-package.3dmanufacturing-3dmodel+xml" />
</Types>`

	relsXML = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Target="/3D/3dmodel.model" Id="rel0" Type="http://schemas.microsoft.com/3dmanufacturing/2013/01/3dmodel" />
</Relationships>`
)

// Meta is the document-level metadata written into the model part.
type Meta struct {
	Title    string
	BedWidth *float64
	BedDepth *float64
}

// Write3MF packages doc as a 3MF archive: content types, root relationships
// and a single model part with one object per resource and one build item per
// placement.
func Write3MF(w io.Writer, doc *Document, meta Meta) error {
	zw := zip.NewWriter(w)
	if err := writeEntry(zw, "[Content_Types].xml", []byte(contentTypesXML)); err != nil {
		return err
	}
	if err := writeEntry(zw, "_rels/.rels", []byte(relsXML)); err != nil {
		return err
	}
	f, err := zw.Create("3D/3dmodel.model")
	if err != nil {
		return fmt.Errorf("3mf: create model part: %w", err)
	}
	if err := writeModel(f, doc, meta); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("3mf: close archive: %w", err)
	}
	return nil
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("zip: create %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("zip: write %s: %w", name, err)
	}
	return nil
}

// writeModel streams the model XML. Meshes can hold hundreds of thousands of
// vertices, so the document is written element by element rather than
// marshalled from an in-memory tree.
func writeModel(out io.Writer, doc *Document, meta Meta) error {
	w := bufio.NewWriterSize(out, 64*1024)

	fmt.Fprintf(w, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<model unit=\"millimeter\" xmlns=%q>", coreNamespace)
	writeMeta(w, "Title", meta.Title)
	writeMeta(w, "Application", application)
	if meta.BedWidth != nil {
		writeMeta(w, "BedWidthMm", formatNumber(*meta.BedWidth))
	}
	if meta.BedDepth != nil {
		writeMeta(w, "BedDepthMm", formatNumber(*meta.BedDepth))
	}

	w.WriteString("<resources>")
	for _, r := range doc.Resources {
		fmt.Fprintf(w, `<object id="%d" type="model"><mesh><vertices>`, r.ID)
		for _, v := range r.Mesh.Vertices {
			fmt.Fprintf(w, `<vertex x="%.4f" y="%.4f" z="%.4f" />`, v.X, v.Y, v.Z)
		}
		w.WriteString("</vertices><triangles>")
		for _, t := range r.Mesh.Triangles {
			fmt.Fprintf(w, `<triangle v1="%d" v2="%d" v3="%d" />`, t[0], t[1], t[2])
		}
		w.WriteString("</triangles></mesh></object>")
	}
	w.WriteString("</resources><build>")
	for _, p := range doc.Placements {
		fmt.Fprintf(w, `<item objectid="%d" transform="%s" />`, p.ObjectID, FormatTransform(p.Transform))
	}
	w.WriteString("</build></model>")

	if err := w.Flush(); err != nil {
		return fmt.Errorf("3mf: write model: %w", err)
	}
	return nil
}

func writeMeta(w *bufio.Writer, name, value string) {
	fmt.Fprintf(w, `<metadata name=%q>`, name)
	_ = xml.EscapeText(w, []byte(value))
	w.WriteString("</metadata>")
}

// FormatTransform renders the twelve transform values space separated.
func FormatTransform(t [12]float64) string {
	parts := make([]string, len(t))
	for i, v := range t {
		parts[i] = formatNumber(v)
	}
	return strings.Join(parts, " ")
}

// formatNumber prints integers without a fraction and everything else with at
// most six decimals, trailing zeros stripped.
func formatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	s := strconv.FormatFloat(v, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}
