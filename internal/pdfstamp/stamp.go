// Package pdfstamp adds the verification footer and QR code that precede
// the first electronic signature on an attachment.
package pdfstamp

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	qrcode "github.com/skip2/go-qrcode"
)

// DefaultNotice 页脚电子签名声明
const DefaultNotice = "Dokumen ini telah ditandatangani secara elektronik menggunakan sertifikat elektronik " +
	"yang diterbitkan oleh Balai Besar Sertifikasi Elektronik (BSrE), BSSN"

const (
	textDescription = "fontname:Helvetica, points:7, position:bc, offset:0 14, scalefactor:1 abs, rotation:0, fillcolor:#333333"
	qrDescription   = "position:br, offset:-24 24, scalefactor:0.09, rotation:0"
	qrPixels        = 256
	lastPage        = "l"
)

// ErrEmptyURL 缺少验证链接
var ErrEmptyURL = errors.New("verification url is required")

var disableConfigDir sync.Once

// Stamper decorates a PDF with a verification footer.
type Stamper interface {
	Stamp(pdf []byte, verifyURL string) ([]byte, error)
}

// FooterStamper 在最后一页加入声明文字与二维码
type FooterStamper struct {
	notice string
	conf   *model.Configuration
}

// NewFooterStamper 创建页脚盖章器，notice 为空时使用默认声明
func NewFooterStamper(notice string) *FooterStamper {
	disableConfigDir.Do(api.DisableConfigDir)
	if notice == "" {
		notice = DefaultNotice
	}
	return &FooterStamper{notice: notice, conf: model.NewDefaultConfiguration()}
}

// Stamp 返回加盖页脚后的 PDF
func (s *FooterStamper) Stamp(pdf []byte, verifyURL string) ([]byte, error) {
	if verifyURL == "" {
		return nil, ErrEmptyURL
	}

	png, err := qrcode.Encode(verifyURL, qrcode.Medium, qrPixels)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr code: %w", err)
	}

	text, err := api.TextWatermark(s.notice, textDescription, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("failed to build footer: %w", err)
	}
	withText := new(bytes.Buffer)
	if err := api.AddWatermarks(bytes.NewReader(pdf), withText, []string{lastPage}, text, s.conf); err != nil {
		return nil, fmt.Errorf("failed to stamp footer: %w", err)
	}

	qr, err := api.ImageWatermarkForReader(bytes.NewReader(png), qrDescription, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("failed to build qr stamp: %w", err)
	}
	out := new(bytes.Buffer)
	if err := api.AddWatermarks(bytes.NewReader(withText.Bytes()), out, []string{lastPage}, qr, s.conf); err != nil {
		return nil, fmt.Errorf("failed to stamp qr code: %w", err)
	}
	return out.Bytes(), nil
}
