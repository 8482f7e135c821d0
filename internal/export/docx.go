package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`

	relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`

	documentOpen  = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" + `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	documentClose = `<w:sectPr/></w:body></w:document>`
)

// Font sizes in half-points.
const (
	sizeBody    = 22
	sizeSmall   = 18
	sizeMeta    = 20
	sizeHeading = 32
	sizeSection = 28
	sizeSub     = 24
)

type run struct {
	text string
	bold bool
	size int
}

// docxWriter accumulates WordprocessingML body markup.
type docxWriter struct {
	body     bytes.Buffer
	modified time.Time
}

func newDOCX(modified time.Time) *docxWriter {
	return &docxWriter{modified: modified}
}

func (d *docxWriter) heading(text string, level int, centered bool) {
	size := sizeSub
	switch level {
	case 1:
		size = sizeHeading
	case 2:
		size = sizeSection
	}
	d.paragraph(centered, run{text: text, bold: true, size: size})
}

func (d *docxWriter) text(text string, size int) {
	d.paragraph(false, run{text: text, size: size})
}

func (d *docxWriter) paragraph(centered bool, runs ...run) {
	d.body.WriteString("<w:p>")
	if centered {
		d.body.WriteString(`<w:pPr><w:jc w:val="center"/></w:pPr>`)
	}
	for _, r := range runs {
		d.writeRun(r)
	}
	d.body.WriteString("</w:p>")
}

func (d *docxWriter) writeRun(r run) {
	size := r.size
	if size == 0 {
		size = sizeBody
	}
	d.body.WriteString(`<w:r><w:rPr><w:rFonts w:ascii="Arial" w:hAnsi="Arial" w:cs="Arial"/>`)
	if r.bold {
		d.body.WriteString("<w:b/>")
	}
	fmt.Fprintf(&d.body, `<w:sz w:val="%d"/></w:rPr>`, size)
	for i, line := range strings.Split(r.text, "\n") {
		if i > 0 {
			d.body.WriteString("<w:br/>")
		}
		d.body.WriteString(`<w:t xml:space="preserve">`)
		_ = xml.EscapeText(&d.body, []byte(line))
		d.body.WriteString("</w:t>")
	}
	d.body.WriteString("</w:r>")
}

func (d *docxWriter) table(header [2]string, rows [][2]string) {
	d.body.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="0" w:type="auto"/><w:tblBorders>`)
	for _, side := range []string{"top", "left", "bottom", "right", "insideH", "insideV"} {
		fmt.Fprintf(&d.body, `<w:%s w:val="single" w:sz="4" w:space="0" w:color="4F81BD"/>`, side)
	}
	d.body.WriteString(`</w:tblBorders></w:tblPr>`)
	d.row(header, true)
	for _, r := range rows {
		d.row(r, false)
	}
	d.body.WriteString("</w:tbl>")
}

func (d *docxWriter) row(cells [2]string, bold bool) {
	d.body.WriteString("<w:tr>")
	for _, c := range cells {
		d.body.WriteString("<w:tc>")
		d.paragraph(false, run{text: c, bold: bold, size: sizeMeta})
		d.body.WriteString("</w:tc>")
	}
	d.body.WriteString("</w:tr>")
}

func (d *docxWriter) pageBreak() {
	d.body.WriteString(`<w:p><w:r><w:br w:type="page"/></w:r></w:p>`)
}

func (d *docxWriter) writeTo(w io.Writer) error {
	zw := zip.NewWriter(w)
	parts := []struct{ name, body string }{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{"word/document.xml", documentOpen + d.body.String() + documentClose},
	}
	for _, p := range parts {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: zip.Deflate, Modified: d.modified})
		if err != nil {
			return fmt.Errorf("docx part %s: %w", p.name, err)
		}
		if _, err := io.WriteString(fw, p.body); err != nil {
			return fmt.Errorf("docx part %s: %w", p.name, err)
		}
	}
	return zw.Close()
}

func anonymizedDOCX(d *Document, withMetadata bool) *docxWriter {
	w := newDOCX(d.Timestamp)
	if withMetadata {
		w.heading("Анонімізований документ", 1, true)
		w.paragraph(false, run{text: d.metadataHeader() + "\n" + rule, size: sizeSmall})
	}
	w.text(d.AnonymizedText, sizeBody)
	return w
}

func fullDOCX(d *Document) *docxWriter {
	w := newDOCX(d.Timestamp)
	w.heading("Звіт про деідентифікацію", 1, true)

	w.heading("Метадані аналізу", 2, false)
	w.text(d.metadataHeader(), sizeMeta)

	w.heading("Статистика", 2, false)
	w.table([2]string{"Показник", "Значення"}, d.Statistics().Rows())
	w.text("", sizeBody)

	w.heading("Анонімізований текст", 2, false)
	w.text(d.AnonymizedText, sizeBody)
	w.pageBreak()

	w.heading("Виявлені сутності", 2, false)
	if len(d.Entities) == 0 {
		w.text(noneFound, sizeBody)
		return w
	}
	types, groups := d.byType()
	for _, t := range types {
		w.heading(fmt.Sprintf("%s (%d)", t, len(groups[t])), 3, false)
		for i, e := range groups[t] {
			quoted, detail := describe(e)
			w.paragraph(false,
				run{text: fmt.Sprintf("%d. %s ", i+1, quoted), bold: true},
				run{text: detail, size: sizeSmall})
		}
	}
	return w
}
