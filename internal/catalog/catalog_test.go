package catalog

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/paulmach/orb"
)

func rect(id string, x1, y1, x2, y2 float64) Region {
	return Region{ID: id, Name: "Sheet " + id, Shape: NewRect(x1, y1, x2, y2)}
}

func TestCompareIDs(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2", "10", -1},
		{"10", "2", 1},
		{"47", "47", 0},
		{"47", "47bis", -1},
		{"47bis", "47a", 1},
		{"47bis", "48", -1},
		{"9z", "10a", -1},
		{"7", "abc", -1},
		{"abc", "7", 1},
		{"abc", "abd", -1},
		{"007", "7", 0},
	}
	for _, tt := range tests {
		if got := CompareIDs(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareIDs(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNewSortsByNumericPrefix(t *testing.T) {
	ids := []string{"100", "2", "47bis", "47", "1", "47a", "386", "10", "x"}
	rand.New(rand.NewSource(1)).Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	var regions []Region
	for i, id := range ids {
		regions = append(regions, rect(id, float64(i), 0, float64(i)+1, 1))
	}
	c, err := New(Image{}, regions)
	if err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, r := range c.All() {
		got = append(got, r.ID)
	}
	want := "1,2,10,47,47a,47bis,100,386,x"
	if strings.Join(got, ",") != want {
		t.Fatalf("order = %s, want %s", strings.Join(got, ","), want)
	}

	all := c.All()
	for i := 0; i+1 < len(all); i++ {
		if CompareIDs(all[i].ID, all[i+1].ID) > 0 {
			t.Errorf("%q sorted before %q", all[i].ID, all[i+1].ID)
		}
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New(Image{}, []Region{rect("1", 0, 0, 1, 1), rect("1", 2, 2, 3, 3)})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
}

func TestNewRequiresName(t *testing.T) {
	_, err := New(Image{}, []Region{{ID: "1", Shape: NewRect(0, 0, 1, 1)}})
	if err == nil {
		t.Fatal("expected error for region without a name")
	}
	c, err := New(Image{}, []Region{{ID: "1", LocalizedName: "طنجة", Shape: NewRect(0, 0, 1, 1)}})
	if err != nil {
		t.Fatalf("localized name alone should be enough: %v", err)
	}
	if r, _ := c.Get("1"); r.Title() != "1 : طنجة" {
		t.Errorf("Title() = %q", r.Title())
	}
}

func TestGetAndPosition(t *testing.T) {
	c, err := New(Image{}, []Region{rect("3", 0, 0, 1, 1), rect("1", 2, 2, 3, 3)})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("2"); ok {
		t.Error("Get(2) should miss")
	}
	r, ok := c.Get("3")
	if !ok || r.ID != "3" {
		t.Fatalf("Get(3) = %v, %v", r, ok)
	}
	if c.Position("1") != 0 || c.Position("3") != 1 || c.Position("9") != -1 {
		t.Errorf("positions = %d %d %d", c.Position("1"), c.Position("3"), c.Position("9"))
	}
}

func TestAllReturnsCopy(t *testing.T) {
	c, _ := New(Image{}, []Region{rect("1", 0, 0, 1, 1)})
	all := c.All()
	all[0].Name = "changed"
	if r, _ := c.Get("1"); r.Name == "changed" {
		t.Fatal("All() exposed internal storage")
	}
}

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() == 0 {
		t.Fatal("default catalog is empty")
	}
	r, ok := c.Get("47")
	if !ok {
		t.Fatal("sheet 47 missing")
	}
	want := []float64{352, 134, 374, 158}
	got := r.Shape.Coordinates()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("coords = %v, want %v", got, want)
		}
	}
	if c.Image().URL == "" {
		t.Error("image url missing")
	}
	if len(c.AdminRegions()) == 0 {
		t.Error("no admin regions")
	}
}

func TestParseJSON(t *testing.T) {
	doc := `{"image":{"url":"x.jpg","width":800,"height":600},
	"regions":[{"id":"5","name":"Five","shape":"poly","coords":[0,0,10,0,10,10,0,10]}]}`
	c, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if !c.Image().HasSize() {
		t.Error("expected size hints")
	}
	r, _ := c.Get("5")
	if r.Shape.Kind() != KindPoly {
		t.Fatalf("kind = %s", r.Shape.Kind())
	}
	if got := r.Shape.Centroid(); got != (orb.Point{5, 5}) {
		t.Errorf("centroid = %v", got)
	}
}

func TestParseRejectsBadShape(t *testing.T) {
	doc := "regions:\n  - id: \"1\"\n    name: A\n    shape: circle\n    coords: [1, 2, 3]\n"
	if _, err := Parse([]byte(doc)); !errors.Is(err, ErrInvalidShape) {
		t.Fatalf("err = %v, want ErrInvalidShape", err)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	r := Region{ID: "9", Name: "Nine", Shape: NewRect(1, 2, 3, 4), DownloadURL: "u", Region: "R"}
	back, err := ToRecord(r).ToRegion()
	if err != nil {
		t.Fatal(err)
	}
	if back.ID != r.ID || back.Shape != r.Shape || back.DownloadURL != "u" || back.Region != "R" {
		t.Errorf("round trip = %+v", back)
	}
}

func TestFeatureCollection(t *testing.T) {
	c, _ := New(Image{}, []Region{
		rect("1", 0, 0, 10, 10),
		{ID: "2", Name: "Tri", Shape: Polygon{Ring: orb.Ring{{0, 0}, {4, 0}, {0, 4}}}},
	})
	fc := c.FeatureCollection()
	if len(fc.Features) != 2 {
		t.Fatalf("features = %d", len(fc.Features))
	}
	poly, ok := fc.Features[1].Geometry.(orb.Polygon)
	if !ok {
		t.Fatalf("geometry = %T", fc.Features[1].Geometry)
	}
	if !poly[0].Closed() {
		t.Error("exported ring is not closed")
	}
	if fc.Features[0].Properties["name"] != "Sheet 1" {
		t.Errorf("properties = %v", fc.Features[0].Properties)
	}
}
