package extractor

import (
	"errors"
	"strings"
	"testing"
)

const detailFixture = `<html>
<head><title>Im&oacute;vel</title></head>
<body>
  <h1>Apartamento em Boa Viagem</h1>
  <p>C&oacute;digo: 12345</p>
  <div class="endereco">Boa Viagem - Recife/PE</div>
  <div class="preco">Venda: R$ 350.000,00</div>
  <div class="preco">Condom&iacute;nio: R$ 450,00</div>
  <div class="preco">IPTU: R$ 1.200,00</div>
  <del>R$ 380.000,00</del>
  <div class="detalhes">3 quartos sendo 1 su&iacute;te, 2 banheiros, 2 vagas de garagem.
    120 m&sup2; &uacute;til e 150 m&sup2; total.</div>
  <div class="descricao">Apartamento reformado com vista para o mar.</div>
  <ul class="caracteristicas">
    <li>Varanda</li>
    <li>Arm&aacute;rios embutidos</li>
    <li>Varanda</li>
  </ul>
  <ul class="comodidades">
    <li>Piscina</li>
    <li>Academia</li>
  </ul>
  <img src="/fotos/12345-frente.jpg" />
  <img data-src="https://cdn.example.test/fotos/12345-sala.webp" />
  <img src="/scripts/pixel.php" />
</body>
</html>`

func TestExtractFullListing(t *testing.T) {
	rec, err := Extract(detailFixture, "http://example.test/imovel/apartamento-venda-12345")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if rec.Code != "12345" {
		t.Fatalf("code = %q, want 12345", rec.Code)
	}
	if rec.Identity() != "12345" {
		t.Fatalf("identity = %q, want the site code", rec.Identity())
	}
	if rec.Title != "Apartamento em Boa Viagem" {
		t.Fatalf("title = %q", rec.Title)
	}
	if rec.Category != "Apartamento" {
		t.Fatalf("category = %q, want Apartamento", rec.Category)
	}
	if rec.Operation != "Venda" {
		t.Fatalf("operation = %q, want Venda", rec.Operation)
	}

	if rec.Price == nil || *rec.Price != 350000 {
		t.Fatalf("price = %v, want 350000", rec.Price)
	}
	if rec.OriginalPrice == nil || *rec.OriginalPrice != 380000 {
		t.Fatalf("original price = %v, want 380000", rec.OriginalPrice)
	}
	if rec.CondoFee == nil || *rec.CondoFee != 450 {
		t.Fatalf("condo fee = %v, want 450", rec.CondoFee)
	}
	if rec.IPTU == nil || *rec.IPTU != 1200 {
		t.Fatalf("iptu = %v, want 1200", rec.IPTU)
	}

	if rec.Neighborhood != "Boa Viagem" || rec.City != "Recife" || rec.State != "PE" {
		t.Fatalf("address split = %q/%q/%q, want Boa Viagem/Recife/PE",
			rec.Neighborhood, rec.City, rec.State)
	}

	if rec.Bedrooms == nil || *rec.Bedrooms != 3 {
		t.Fatalf("bedrooms = %v, want 3", rec.Bedrooms)
	}
	if rec.Suites == nil || *rec.Suites != 1 {
		t.Fatalf("suites = %v, want 1", rec.Suites)
	}
	if rec.Bathrooms == nil || *rec.Bathrooms != 2 {
		t.Fatalf("bathrooms = %v, want 2", rec.Bathrooms)
	}
	if rec.ParkingSpots == nil || *rec.ParkingSpots != 2 {
		t.Fatalf("parking = %v, want 2", rec.ParkingSpots)
	}
	if rec.UsableArea == nil || *rec.UsableArea != 120 {
		t.Fatalf("usable area = %v, want 120", rec.UsableArea)
	}
	if rec.TotalArea == nil || *rec.TotalArea != 150 {
		t.Fatalf("total area = %v, want 150", rec.TotalArea)
	}

	if len(rec.Features) != 2 || rec.Features[0] != "Varanda" {
		t.Fatalf("features = %v, want deduplicated [Varanda Armários embutidos]", rec.Features)
	}
	if len(rec.Amenities) != 2 || rec.Amenities[0] != "Piscina" {
		t.Fatalf("amenities = %v", rec.Amenities)
	}

	wantImages := []string{
		"http://example.test/fotos/12345-frente.jpg",
		"https://cdn.example.test/fotos/12345-sala.webp",
	}
	if len(rec.ImageURLs) != 2 || rec.ImageURLs[0] != wantImages[0] || rec.ImageURLs[1] != wantImages[1] {
		t.Fatalf("images = %v, want %v", rec.ImageURLs, wantImages)
	}

	if rec.CollectedAt.IsZero() {
		t.Fatalf("collected at should be set")
	}
}

func TestExtractFallsBackToURLIdentity(t *testing.T) {
	html := `<html><body><h1>Casa no Centro</h1><div class="preco">R$ 200.000,00</div></body></html>`

	rec, err := Extract(html, "http://example.test/imovel/casa-centro?origem=busca")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if rec.Code != "" {
		t.Fatalf("code = %q, want empty", rec.Code)
	}
	if rec.Identity() != "http://example.test/imovel/casa-centro" {
		t.Fatalf("identity = %q, want the normalized URL", rec.Identity())
	}
}

func TestExtractRejectsPageWithoutIdentity(t *testing.T) {
	_, err := Extract("<html><body></body></html>", "")
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("error = %v, want *ExtractionError", err)
	}
}

func TestExtractRejectsUnrecognizableMarkup(t *testing.T) {
	_, err := Extract("<html><body><nav>menu</nav></body></html>", "http://example.test/imovel/x")
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("error = %v, want *ExtractionError", err)
	}
	if !strings.Contains(extractErr.Reason, "no listing regions") {
		t.Fatalf("reason = %q", extractErr.Reason)
	}
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{title: "Apartamento 3 quartos", want: "Apartamento"},
		{title: "Linda Cobertura Duplex", want: "Cobertura"},
		{title: "Casa com quintal", want: "Casa"},
		{title: "Sala comercial no centro", want: "Comercial"},
		{title: "Terreno 500m", want: "Terreno"},
		{title: "Galpão logístico", want: "Galpão"},
		{title: "Flat mobiliado", want: "Flat"},
		{title: "Studio moderno", want: "Studio"},
		{title: "Oportunidade única", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if got := inferCategory(tt.title); got != tt.want {
				t.Fatalf("inferCategory(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestInferOperation(t *testing.T) {
	tests := []struct {
		name string
		url  string
		text string
		want string
	}{
		{name: "rental url", url: "http://x/imoveis/para-alugar/casa-1", want: "Aluguel"},
		{name: "sale url", url: "http://x/imovel/casa-venda-2", want: "Venda"},
		{name: "launch url", url: "http://x/lancamentos/torre-3", want: "Lançamento"},
		{name: "from body text", url: "http://x/imovel/casa-4", text: "Excelente casa para alugar", want: "Aluguel"},
		{name: "unknown", url: "http://x/imovel/casa-5", text: "sem pistas", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inferOperation(tt.url, tt.text); got != tt.want {
				t.Fatalf("inferOperation = %q, want %q", got, tt.want)
			}
		})
	}
}
