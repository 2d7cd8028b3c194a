package pdfstamp_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/mautops/nota-esign/internal/pdfstamp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalPDF 生成带正确 xref 的单页 PDF
func minimalPDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << >> /Contents 4 0 R >>",
		"<< /Length 0 >>\nstream\n\nendstream",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// TestFooterStamper_Stamp 测试页脚与二维码
func TestFooterStamper_Stamp(t *testing.T) {
	in := minimalPDF()
	stamper := pdfstamp.NewFooterStamper("")

	out, err := stamper.Stamp(in, "https://nota.example.go.id/qr/k")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Greater(t, len(out), len(in))
}

// TestFooterStamper_Errors 测试错误输入
func TestFooterStamper_Errors(t *testing.T) {
	stamper := pdfstamp.NewFooterStamper("custom notice")

	_, err := stamper.Stamp(minimalPDF(), "")
	assert.ErrorIs(t, err, pdfstamp.ErrEmptyURL)

	_, err = stamper.Stamp([]byte("not a pdf"), "https://x/qr/1")
	assert.Error(t, err)
}
