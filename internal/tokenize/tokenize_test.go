package tokenize

import (
	"testing"

	"github.com/ledongthuc/pdf"
)

func TestDecodeTokens_bareArray(t *testing.T) {
	content := []byte(`[{"text":"XS2530201644","page":1,"x":10,"y":20,"width":60}]`)
	tokens, err := DecodeTokens(content)
	if err != nil {
		t.Fatalf("DecodeTokens: %v", err)
	}
	if len(tokens) != 1 || tokens[0].Text != "XS2530201644" || tokens[0].X != 10 {
		t.Errorf("unexpected tokens: %+v", tokens)
	}
}

func TestDecodeTokens_envelope(t *testing.T) {
	content := []byte(`{"tokens":[{"text":"USD","page":2,"x":1,"y":2}]}`)
	tokens, err := DecodeTokens(content)
	if err != nil {
		t.Fatalf("DecodeTokens: %v", err)
	}
	if len(tokens) != 1 || tokens[0].Page != 2 {
		t.Errorf("unexpected tokens: %+v", tokens)
	}
}

func TestDecodeTokens_invalid(t *testing.T) {
	for _, content := range []string{`{"notes":"hi"}`, `not json`} {
		if _, err := DecodeTokens([]byte(content)); err == nil {
			t.Errorf("expected error for %q", content)
		}
	}
}

func TestTokenizePlain(t *testing.T) {
	tokens := tokenizePlain("CREDIT BANK\n  XS2530201644  199'068.50")
	if len(tokens) != 4 {
		t.Fatalf("expected 4 tokens, got %d: %+v", len(tokens), tokens)
	}
	if tokens[1].Text != "BANK" || tokens[1].X != 7 || tokens[1].Y != 0 {
		t.Errorf("token 1 = %+v", tokens[1])
	}
	if tokens[2].Text != "XS2530201644" || tokens[2].X != 2 || tokens[2].Y != lineSpacing {
		t.Errorf("token 2 = %+v", tokens[2])
	}
	if tokens[3].Text != "199'068.50" || tokens[3].X != 16 {
		t.Errorf("token 3 = %+v", tokens[3])
	}
}

func TestTokenizePlain_empty(t *testing.T) {
	if tokens := tokenizePlain("\n\n  \n"); len(tokens) != 0 {
		t.Errorf("expected no tokens, got %+v", tokens)
	}
}

func TestWordsFromRow(t *testing.T) {
	// Two fragments close together form one word; a wide gap starts the next.
	texts := []pdf.Text{
		{S: "199'0", X: 100, W: 25, FontSize: 10},
		{S: "68.50", X: 125.5, W: 25, FontSize: 10},
		{S: "USD", X: 200, W: 18, FontSize: 10},
	}
	words := wordsFromRow(texts)
	if len(words) != 2 {
		t.Fatalf("expected 2 words, got %d: %+v", len(words), words)
	}
	if words[0].Text != "199'068.50" || words[0].X != 100 {
		t.Errorf("word 0 = %+v", words[0])
	}
	if words[1].Text != "USD" {
		t.Errorf("word 1 = %+v", words[1])
	}
}

func TestWordsFromRow_spaceFragmentSplits(t *testing.T) {
	texts := []pdf.Text{
		{S: "Toronto", X: 10, W: 35, FontSize: 10},
		{S: " ", X: 45, W: 3, FontSize: 10},
		{S: "Dominion", X: 48, W: 40, FontSize: 10},
	}
	words := wordsFromRow(texts)
	if len(words) != 2 || words[0].Text != "Toronto" || words[1].Text != "Dominion" {
		t.Errorf("unexpected words: %+v", words)
	}
}
