package catalog

import (
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"meal-scheduler/internal/ghost"
	"meal-scheduler/internal/recipe"
)

// ArchivedTag is the Ghost internal tag that withdraws a recipe from planning.
const ArchivedTag = "hash-archived"

// ExtractRecord maps a Ghost post to a catalog record.
//
// Tags whose slug starts with proteinPrefix name proteins; other public tags
// become plain tags with dashes turned into underscores ("date-night" ->
// "date_night"). Ghost internal tags are ignored except #archived. A facet
// block in the post body can add proteins and a rating:
//
//	<div class="recipe-facets" data-rating="4.5">
//	  <ul class="proteins"><li>Chicken</li></ul>
//	</div>
func ExtractRecord(post ghost.Post, proteinPrefix string) recipe.Record {
	rec := recipe.Record{ExternalID: post.ID, Title: strings.TrimSpace(post.Title)}
	if ts, err := time.Parse(time.RFC3339, post.UpdatedAt); err == nil {
		rec.UpdatedAt = ts
	}

	for _, tag := range post.Tags {
		slug := tag.Slug
		if slug == "" {
			slug = slugify(tag.Name)
		}
		switch {
		case slug == ArchivedTag:
			rec.Archived = true
		case strings.HasPrefix(slug, "hash-"):
		case proteinPrefix != "" && strings.HasPrefix(slug, proteinPrefix):
			rec.Proteins = append(rec.Proteins, strings.ReplaceAll(strings.TrimPrefix(slug, proteinPrefix), "-", " "))
		default:
			rec.Tags = append(rec.Tags, strings.ReplaceAll(slug, "-", "_"))
		}
	}

	proteins, rating := parseFacetBlock(post.HTML)
	rec.Proteins = append(rec.Proteins, proteins...)
	rec.Rating = rating
	return rec
}

func parseFacetBlock(html string) ([]string, *float64) {
	if !strings.Contains(html, "recipe-facets") {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil
	}
	block := doc.Find(".recipe-facets").First()

	var proteins []string
	block.Find(".proteins li").Each(func(_ int, s *goquery.Selection) {
		if p := strings.TrimSpace(s.Text()); p != "" {
			proteins = append(proteins, p)
		}
	})

	var rating *float64
	if raw, ok := block.Attr("data-rating"); ok {
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			rating = &v
		}
	}
	return proteins, rating
}

func slugify(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if strings.HasPrefix(name, "#") {
		name = "hash-" + name[1:]
	}
	return strings.Join(strings.Fields(name), "-")
}
