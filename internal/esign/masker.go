package esign

import (
	"encoding/json"
	"strings"
)

// Redacted 掩码后的值
const Redacted = "***"

// ResponseBodyLimit 响应体日志截断长度（字符）
const ResponseBodyLimit = 5000

// DefaultMaskedPaths 请求中需要掩码的字段
var DefaultMaskedPaths = []string{
	"passphrase",
	"totp",
	"pdfPassword",
	"password",
	"file",
	"signatureProperties.imageBase64",
}

// Masker redacts dotted key paths in a decoded JSON tree. A path whose first
// key is missing at the current level is searched for in every child.
type Masker struct {
	paths [][]string
}

// NewMasker 创建掩码器
func NewMasker(paths ...string) *Masker {
	m := &Masker{}
	for _, p := range paths {
		if p == "" {
			continue
		}
		m.paths = append(m.paths, strings.Split(p, "."))
	}
	return m
}

// NewDefaultMasker 使用默认字段创建掩码器
func NewDefaultMasker() *Masker {
	return NewMasker(DefaultMaskedPaths...)
}

// Mask redacts v in place and returns it. v is a tree of map[string]any,
// []any and scalars as produced by encoding/json.
func (m *Masker) Mask(v any) any {
	for _, p := range m.paths {
		v = maskPath(v, p)
	}
	return v
}

func maskPath(node any, path []string) any {
	if len(path) == 0 {
		return node
	}
	switch n := node.(type) {
	case map[string]any:
		key := path[0]
		if v, ok := n[key]; ok {
			if len(path) == 1 {
				if v != nil {
					n[key] = Redacted
				}
				return n
			}
			n[key] = maskPath(v, path[1:])
			return n
		}
		for k, child := range n {
			n[k] = maskPath(child, path)
		}
		return n
	case []any:
		for i := range n {
			n[i] = maskPath(n[i], path)
		}
		return n
	default:
		return node
	}
}

// MaskRequest encodes payload as JSON with the configured paths redacted.
func (m *Masker) MaskRequest(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	return json.Marshal(m.Mask(tree))
}

// MaskResponse redacts every "file" entry of a JSON body and truncates the
// result. Non-JSON bodies are only truncated.
func MaskResponse(body []byte, limit int) string {
	var tree any
	if err := json.Unmarshal(body, &tree); err != nil {
		return Truncate(string(body), limit)
	}
	switch tree.(type) {
	case map[string]any, []any:
	default:
		return Truncate(string(body), limit)
	}
	maskFiles(tree)
	encoded, err := json.Marshal(tree)
	if err != nil {
		return Truncate(string(body), limit)
	}
	return Truncate(string(encoded), limit)
}

func maskFiles(node any) {
	switch n := node.(type) {
	case map[string]any:
		if v, ok := n["file"]; ok {
			switch f := v.(type) {
			case []any:
				for i := range f {
					f[i] = Redacted
				}
			case map[string]any:
				for k := range f {
					f[k] = Redacted
				}
			case nil:
			default:
				n["file"] = Redacted
			}
		}
		for _, child := range n {
			maskFiles(child)
		}
	case []any:
		for _, child := range n {
			maskFiles(child)
		}
	}
}

// Truncate 按字符截断，超出时以 "..." 结尾且总长度不超过 limit
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}
