/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
)

//go:embed words.json
var wordData []byte

const defaultDifficulty = "medium"

// Catalog maps theme → difficulty → word list. It is immutable after load and
// safe for concurrent use.
type Catalog struct {
	themes map[string]map[string][]string
}

func loadCatalog() (*Catalog, error) {
	themes := make(map[string]map[string][]string)
	if err := json.Unmarshal(wordData, &themes); err != nil {
		return nil, fmt.Errorf("parsing word catalog: %w", err)
	}
	if len(themes) == 0 {
		return nil, fmt.Errorf("word catalog is empty")
	}

	for theme, difficulties := range themes {
		if len(difficulties) == 0 {
			return nil, fmt.Errorf("theme %q has no difficulties", theme)
		}
		for difficulty, words := range difficulties {
			if len(words) == 0 {
				return nil, fmt.Errorf("theme %q difficulty %q has no words", theme, difficulty)
			}
		}
	}

	return &Catalog{themes: themes}, nil
}

// Themes returns all theme names in sorted order.
func (c *Catalog) Themes() []string {
	themes := make([]string, 0, len(c.themes))
	for theme := range c.themes {
		themes = append(themes, theme)
	}
	sort.Strings(themes)

	return themes
}

// DefaultTheme returns the first theme in sorted order, used for new rooms.
func (c *Catalog) DefaultTheme() string {
	return c.Themes()[0]
}

// Validate reports whether theme and difficulty resolve to a word list.
func (c *Catalog) Validate(theme, difficulty string) bool {
	difficulties, ok := c.themes[theme]
	if !ok {
		return false
	}
	_, ok = difficulties[difficulty]

	return ok
}

// RandomWord draws a word uniformly from the given list using intn, so callers
// control the randomness source.
func (c *Catalog) RandomWord(theme, difficulty string, intn func(int) int) (string, bool) {
	if !c.Validate(theme, difficulty) {
		return "", false
	}
	words := c.themes[theme][difficulty]

	return words[intn(len(words))], true
}
