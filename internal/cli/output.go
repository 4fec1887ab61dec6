package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/goliatone/go-recipe-cache/recipe"
)

// OutputFormatter writes command results in the selected format.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// JSON writes v as indented JSON.
func (f *OutputFormatter) JSON(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Page writes a page of recipes.
func (f *OutputFormatter) Page(page recipe.Page[recipe.Recipe]) error {
	if f.Format == "json" {
		return f.JSON(page)
	}
	for _, rc := range page.Items {
		fmt.Fprintf(f.Writer, "%s\t%s\n", rc.ID, rc.Title)
	}
	_, err := fmt.Fprintf(f.Writer, "total: %d  has_more: %t\n", page.Total, page.HasMore)
	return err
}

// Recipe writes one recipe, or a not found line when rc is nil.
func (f *OutputFormatter) Recipe(rc *recipe.Recipe, missing string) error {
	if f.Format == "json" {
		return f.JSON(rc)
	}
	if rc == nil {
		_, err := fmt.Fprintln(f.Writer, missing)
		return err
	}

	fmt.Fprintf(f.Writer, "%s\t%s\n", rc.ID, rc.Title)
	if rc.Description != nil {
		fmt.Fprintf(f.Writer, "  %s\n", *rc.Description)
	}
	if rc.CookingTime != nil {
		fmt.Fprintf(f.Writer, "  cooking time: %d min\n", *rc.CookingTime)
	}
	for _, c := range rc.Categories {
		fmt.Fprintf(f.Writer, "  %s: %s\n", c.Dimension, c.Name)
	}
	_, err := fmt.Fprintf(f.Writer, "  views: %d  favorites: %d  cooked: %d\n", rc.ViewCount, rc.FavoriteCount, rc.CookCount)
	return err
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
