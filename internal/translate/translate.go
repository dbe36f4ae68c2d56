// Package translate turns caption text into a target language. Providers
// implement Translator; SegmentTranslator wraps one and never fails, falling
// back to the original text instead.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/snarg/autosubs/internal/apperr"
	"github.com/snarg/autosubs/internal/resilience"
)

// ErrInvalidLanguage is returned by NormalizeLang for codes that do not parse
// as a BCP 47 tag.
var ErrInvalidLanguage = errors.New("invalid language code")

// Translator is a text translation backend.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
	Name() string
}

// NormalizeLang canonicalises a language code: "EN" becomes "en", "zh-cn"
// becomes "zh-CN". Empty input stays empty. Only used for comparison; the
// requested code is what providers receive.
func NormalizeLang(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", nil
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidLanguage, code)
	}
	return tag.String(), nil
}

// Chain tries translators in order, skipping those whose breaker is open.
type Chain struct {
	group *resilience.FallbackGroup[Translator]
}

// NewChain builds a Chain over providers; each gets its own breaker built
// from opts.
func NewChain(opts resilience.BreakerOptions, providers ...Translator) *Chain {
	g := resilience.NewFallbackGroup[Translator](opts)
	for _, p := range providers {
		g.Add(p.Name(), p)
	}
	return &Chain{group: g}
}

func (c *Chain) Translate(ctx context.Context, text, source, target string) (string, error) {
	out, _, err := resilience.Execute(c.group, func(t Translator) (string, error) {
		return t.Translate(ctx, text, source, target)
	})
	return out, err
}

func (c *Chain) Name() string { return strings.Join(c.group.Names(), ",") }

// Result says what happened to one segment's text.
type Result int

const (
	Unchanged Result = iota
	Translated
	Fallback
)

func (r Result) String() string {
	switch r {
	case Unchanged:
		return "unchanged"
	case Translated:
		return "translated"
	case Fallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Outcome is the display text for a segment. Reason is set only for Fallback.
type Outcome struct {
	Text   string
	Result Result
	Reason error
}

// SegmentTranslator translates segment text from a fixed source language.
type SegmentTranslator struct {
	tr     Translator
	source string
	log    zerolog.Logger
}

// NewSegmentTranslator creates a SegmentTranslator. tr may be nil, in which
// case every translation request falls back to the original text.
func NewSegmentTranslator(tr Translator, source string, log zerolog.Logger) *SegmentTranslator {
	return &SegmentTranslator{tr: tr, source: strings.ToLower(strings.TrimSpace(source)), log: log}
}

// Source returns the fixed source language.
func (s *SegmentTranslator) Source() string { return s.source }

// Translate returns the text to display for target. It never returns an
// error: provider failures yield the original text with Result Fallback.
func (s *SegmentTranslator) Translate(ctx context.Context, text, target string) Outcome {
	if text == "" || target == "" || sameLanguage(target, s.source) {
		return Outcome{Text: text, Result: Unchanged}
	}
	if s.tr == nil {
		return s.fallback(text, target, "", errors.New("translation disabled"))
	}
	out, err := s.tr.Translate(ctx, text, s.source, target)
	if err != nil {
		return s.fallback(text, target, s.tr.Name(), err)
	}
	return Outcome{Text: out, Result: Translated}
}

func (s *SegmentTranslator) fallback(text, target, provider string, err error) Outcome {
	reason := apperr.New(apperr.KindTranslation, "translate", err)
	s.log.Warn().
		Err(err).
		Str("target_lang", target).
		Str("provider", provider).
		Msg("translation failed, keeping original text")
	return Outcome{Text: text, Result: Fallback, Reason: reason}
}

// sameLanguage compares canonical forms so "zh-cn" matches "zh-CN" and "iw"
// matches "he". Codes that do not parse compare case-insensitively.
func sameLanguage(a, b string) bool {
	if strings.EqualFold(a, b) {
		return true
	}
	na, errA := NormalizeLang(a)
	nb, errB := NormalizeLang(b)
	return errA == nil && errB == nil && na == nb
}
