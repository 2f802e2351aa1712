// Package extractor converts a listing detail page into a typed record.
//
// Extraction is a pure function of the page HTML and its URL. Every selector
// rule degrades to an absent field when the markup is missing; only the
// identity (site code, falling back to the source URL) is mandatory.
package extractor

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"imovelscan/models"
)

var (
	codeRe     = regexp.MustCompile(`(?i)(?:c[óo]d(?:igo)?|ref)\.?\s*:?\s*(\d+)`)
	bedroomsRe = regexp.MustCompile(`(?i)(\d+)\s*(?:dorm|quarto)`)
	suitesRe   = regexp.MustCompile(`(?i)(\d+)\s*su[íi]te`)
	bathsRe    = regexp.MustCompile(`(?i)(\d+)\s*banh`)
	parkingRe  = regexp.MustCompile(`(?i)(\d+)\s*(?:vaga|garagem)`)
	usableRe   = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*m²\s*(?:[áa]rea\s*)?[úu]til`)
	totalRe    = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*m²\s*total`)
	anyAreaRe  = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*m²`)
	imageExtRe = regexp.MustCompile(`(?i)\.(jpe?g|png|webp|gif)(\?|$)`)
)

var titleSelectors = []string{"h1", ".titulo-imovel", ".titulo", ".property-title", "title"}

var descriptionSelectors = []string{".descricao", ".description", ".texto-imovel", "[class*='descricao']"}

var addressSelectors = []string{".endereco", ".address", ".localizacao", "[class*='endereco']"}

// Extract parses a listing detail page into a record. A structural failure
// (no identity anchor, or a page with none of the expected regions) returns
// an *ExtractionError; it never returns a partially wrong record as success.
func Extract(html, pageURL string) (*models.ListingRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ExtractionError{URL: pageURL, Reason: "unparseable html"}
	}

	text := doc.Text()

	rec := &models.ListingRecord{
		URL:         pageURL,
		CollectedAt: time.Now(),
	}

	if m := codeRe.FindStringSubmatch(text); m != nil {
		rec.Code = m[1]
	}
	if rec.Identity() == "" {
		return nil, &ExtractionError{URL: pageURL, Reason: "listing has no code and no usable URL"}
	}

	rec.Title = firstText(doc, titleSelectors)
	rec.Description = firstText(doc, descriptionSelectors)
	rec.Category = inferCategory(rec.Title)
	rec.Operation = inferOperation(pageURL, text)

	extractPrices(doc, rec)
	extractAddress(doc, rec)

	rec.Bedrooms = matchCount(text, bedroomsRe)
	rec.Suites = matchCount(text, suitesRe)
	rec.Bathrooms = matchCount(text, bathsRe)
	rec.ParkingSpots = matchCount(text, parkingRe)
	extractAreas(text, rec)

	rec.Features = itemTexts(doc, "[class*='caracteristica']")
	rec.Amenities = itemTexts(doc, "[class*='comodidade'], [class*='amenities']")
	rec.ImageURLs = extractImages(doc, pageURL)

	if rec.Code == "" && rec.Title == "" && rec.Price == nil && rec.Description == "" {
		// None of the expected regions matched; the markup has likely changed
		// and the record would carry nothing but its URL.
		return nil, &ExtractionError{URL: pageURL, Reason: "page matched no listing regions"}
	}

	return rec, nil
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		if text := NormalizeText(doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func extractPrices(doc *goquery.Document, rec *models.ListingRecord) {
	doc.Find(".preco, .price, .valor, [class*='preco'], [class*='price']").Each(func(_ int, sel *goquery.Selection) {
		text := NormalizeText(sel.Text())
		if !strings.Contains(text, "R$") {
			return
		}
		lower := strings.ToLower(text)
		switch {
		case strings.Contains(lower, "condom"):
			if rec.CondoFee == nil {
				rec.CondoFee = ParseBRLNumber(text)
			}
		case strings.Contains(lower, "iptu"):
			if rec.IPTU == nil {
				rec.IPTU = ParseBRLNumber(text)
			}
		default:
			if rec.Price == nil {
				rec.Price = ParseBRLNumber(text)
			}
		}
	})

	if original := NormalizeText(doc.Find("del, s, strike, .price-old").First().Text()); original != "" {
		rec.OriginalPrice = ParseBRLNumber(original)
	}
}

// extractAddress reads the address block and splits the site's
// "Bairro - Cidade/UF" shape into its parts.
func extractAddress(doc *goquery.Document, rec *models.ListingRecord) {
	address := firstText(doc, addressSelectors)
	if address == "" {
		return
	}
	rec.Address = address

	parts := strings.SplitN(address, " - ", 2)
	if len(parts) != 2 {
		return
	}
	rec.Neighborhood = strings.TrimSpace(parts[0])

	location := strings.TrimSpace(parts[1])
	if city, state, found := strings.Cut(location, "/"); found {
		rec.City = strings.TrimSpace(city)
		rec.State = strings.TrimSpace(state)
	} else {
		rec.City = location
	}
}

func extractAreas(text string, rec *models.ListingRecord) {
	if m := usableRe.FindStringSubmatch(text); m != nil {
		rec.UsableArea = ParseBRLNumber(m[1])
	}
	if m := totalRe.FindStringSubmatch(text); m != nil {
		rec.TotalArea = ParseBRLNumber(m[1])
	}
	if rec.UsableArea == nil {
		if m := anyAreaRe.FindStringSubmatch(text); m != nil {
			rec.UsableArea = ParseBRLNumber(m[1])
		}
	}
}

// itemTexts collects list entries under containers matching the selector,
// in document order, deduplicated on first occurrence.
func itemTexts(doc *goquery.Document, selector string) []string {
	var items []string
	doc.Find(selector).Find("li, span, p").Each(func(_ int, sel *goquery.Selection) {
		text := NormalizeText(sel.Text())
		if len(text) > 2 && len(text) < 100 {
			items = append(items, text)
		}
	})
	return uniqueStrings(items)
}

func extractImages(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	var images []string
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || src == "" {
			src, _ = sel.Attr("data-src")
		}
		if src == "" || !imageExtRe.MatchString(src) {
			return
		}
		if base != nil {
			if ref, err := url.Parse(src); err == nil {
				src = base.ResolveReference(ref).String()
			}
		}
		images = append(images, src)
	})
	return uniqueStrings(images)
}

func inferCategory(title string) string {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "apartamento") || strings.Contains(lower, "apto"):
		return "Apartamento"
	case strings.Contains(lower, "cobertura"):
		return "Cobertura"
	case strings.Contains(lower, "casa"):
		return "Casa"
	case strings.Contains(lower, "comercial") || strings.Contains(lower, "loja") || strings.Contains(lower, "sala"):
		return "Comercial"
	case strings.Contains(lower, "terreno"):
		return "Terreno"
	case strings.Contains(lower, "galpão") || strings.Contains(lower, "galpao"):
		return "Galpão"
	case strings.Contains(lower, "flat"):
		return "Flat"
	case strings.Contains(lower, "studio") || strings.Contains(lower, "estúdio"):
		return "Studio"
	}
	return ""
}

func inferOperation(pageURL, text string) string {
	lower := strings.ToLower(pageURL)
	switch {
	case strings.Contains(lower, "aluguel") || strings.Contains(lower, "alugar"):
		return "Aluguel"
	case strings.Contains(lower, "venda") || strings.Contains(lower, "comprar"):
		return "Venda"
	case strings.Contains(lower, "lancamento") || strings.Contains(lower, "lançamento"):
		return "Lançamento"
	}

	lowerText := strings.ToLower(text)
	switch {
	case strings.Contains(lowerText, "aluguel") || strings.Contains(lowerText, "alugar"):
		return "Aluguel"
	case strings.Contains(lowerText, "venda") || strings.Contains(lowerText, "comprar"):
		return "Venda"
	case strings.Contains(lowerText, "lançamento"):
		return "Lançamento"
	}
	return ""
}

func matchCount(text string, re *regexp.Regexp) *int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return ParseCount(m[1])
}

func uniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
