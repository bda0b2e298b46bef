// Package tokens estimates the prompt cost of text before it is sent to a model.
package tokens

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator counts tokens for a fixed encoding. Implementations are
// deterministic: the same text always yields the same count.
type Estimator interface {
	Count(text string) int
	Encoding() string
}

// DefaultEncoding is the BPE used by the gpt-3.5 and gpt-4 families.
const DefaultEncoding = "cl100k_base"

// ApproxEncoding names the offline word-based approximation.
const ApproxEncoding = "approx"

// New returns a BPE estimator for encoding. ApproxEncoding selects the
// offline approximation directly.
func New(encoding string) (Estimator, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	if encoding == ApproxEncoding {
		return Approx{}, nil
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %q: %w", encoding, err)
	}
	return &BPE{enc: enc, name: encoding}, nil
}

// NewOrApprox is New with a fallback to Approx when the encoding cannot be
// loaded, for example when the BPE ranks are not cached and the network is
// unavailable. The returned error, if any, describes the fallback.
func NewOrApprox(encoding string) (Estimator, error) {
	est, err := New(encoding)
	if err != nil {
		return Approx{}, err
	}
	return est, nil
}

// BPE counts tokens with a tiktoken encoding.
type BPE struct {
	mu   sync.Mutex
	enc  *tiktoken.Tiktoken
	name string
}

// Count returns the number of BPE tokens in text. Special-token strings are
// counted as ordinary text.
func (b *BPE) Count(text string) int {
	if text == "" {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.enc.Encode(text, nil, nil))
}

func (b *BPE) Encoding() string { return b.name }

// Approx estimates about 1.3 tokens per word plus one token per two
// punctuation marks.
type Approx struct{}

func (Approx) Count(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	punct := 0
	for _, r := range text {
		if unicode.IsPunct(r) {
			punct++
		}
	}
	return int(float64(words)*1.3) + punct/2
}

func (Approx) Encoding() string { return ApproxEncoding }

// Fixed reports the same count for every non-empty text. Tests use it to pin
// model selection.
type Fixed int

func (f Fixed) Count(text string) int {
	if text == "" {
		return 0
	}
	return int(f)
}

func (Fixed) Encoding() string { return "fixed" }

// Func adapts a plain function.
type Func func(string) int

func (f Func) Count(text string) int { return f(text) }

func (Func) Encoding() string { return "func" }
