package geocoding

import (
	"context"
	"errors"

	"github.com/dhconnelly/rtreego"

	"route-planner/internal/domain"
)

type place struct {
	domain.Locality
}

func (p place) Bounds() rtreego.Rect {
	return rtreego.Point{p.Coords.Lon, p.Coords.Lat}.ToRect(1e-6)
}

// Gazetteer answers reverse lookups offline from an R-tree of known
// localities. The nearest entry wins, so it never fails once populated.
type Gazetteer struct {
	tree *rtreego.Rtree
}

func NewGazetteer(localities []domain.Locality) *Gazetteer {
	objs := make([]rtreego.Spatial, 0, len(localities))
	for _, l := range localities {
		objs = append(objs, place{l})
	}
	return &Gazetteer{tree: rtreego.NewTree(2, 4, 16, objs...)}
}

// NewBrazilGazetteer is seeded with state capitals and large regional cities.
func NewBrazilGazetteer() *Gazetteer { return NewGazetteer(brazilCities) }

func (g *Gazetteer) Size() int { return g.tree.Size() }

func (g *Gazetteer) Reverse(ctx context.Context, coords domain.Coordinates) (domain.Locality, error) {
	if err := ctx.Err(); err != nil {
		return domain.Locality{}, err
	}
	if g.tree.Size() == 0 {
		return domain.Locality{}, errors.New("gazetteer: no localities loaded")
	}

	nearest, ok := g.tree.NearestNeighbor(rtreego.Point{coords.Lon, coords.Lat}).(place)
	if !ok {
		return domain.Locality{}, errors.New("gazetteer: nearest neighbour lookup failed")
	}
	return nearest.Locality, nil
}

func city(name, uf string, lat, lon float64) domain.Locality {
	return domain.Locality{Name: name, RegionCode: uf, Coords: domain.Coordinates{Lat: lat, Lon: lon}}
}

var brazilCities = []domain.Locality{
	city("Rio Branco", "AC", -9.9747, -67.8076),
	city("Maceió", "AL", -9.6658, -35.7350),
	city("Arapiraca", "AL", -9.7525, -36.6611),
	city("Macapá", "AP", 0.0349, -51.0694),
	city("Manaus", "AM", -3.1190, -60.0217),
	city("Salvador", "BA", -12.9714, -38.5014),
	city("Feira de Santana", "BA", -12.2664, -38.9663),
	city("Vitória da Conquista", "BA", -14.8615, -40.8442),
	city("Fortaleza", "CE", -3.7319, -38.5267),
	city("Juazeiro do Norte", "CE", -7.2131, -39.3153),
	city("Brasília", "DF", -15.7939, -47.8828),
	city("Vitória", "ES", -20.3155, -40.3128),
	city("Goiânia", "GO", -16.6869, -49.2648),
	city("Anápolis", "GO", -16.3281, -48.9530),
	city("São Luís", "MA", -2.5307, -44.3068),
	city("Imperatriz", "MA", -5.5264, -47.4917),
	city("Cuiabá", "MT", -15.6014, -56.0979),
	city("Campo Grande", "MS", -20.4697, -54.6201),
	city("Dourados", "MS", -22.2231, -54.8120),
	city("Belo Horizonte", "MG", -19.9167, -43.9345),
	city("Uberlândia", "MG", -18.9186, -48.2772),
	city("Juiz de Fora", "MG", -21.7642, -43.3496),
	city("Montes Claros", "MG", -16.7350, -43.8617),
	city("Belém", "PA", -1.4558, -48.4902),
	city("Santarém", "PA", -2.4431, -54.7083),
	city("João Pessoa", "PB", -7.1195, -34.8450),
	city("Campina Grande", "PB", -7.2307, -35.8817),
	city("Curitiba", "PR", -25.4284, -49.2733),
	city("Londrina", "PR", -23.3045, -51.1696),
	city("Maringá", "PR", -23.4205, -51.9331),
	city("Cascavel", "PR", -24.9555, -53.4552),
	city("Recife", "PE", -8.0476, -34.8770),
	city("Caruaru", "PE", -8.2760, -35.9819),
	city("Petrolina", "PE", -9.3891, -40.5030),
	city("Teresina", "PI", -5.0892, -42.8019),
	city("Rio de Janeiro", "RJ", -22.9068, -43.1729),
	city("Campos dos Goytacazes", "RJ", -21.7545, -41.3244),
	city("Natal", "RN", -5.7945, -35.2110),
	city("Mossoró", "RN", -5.1878, -37.3441),
	city("Porto Alegre", "RS", -30.0346, -51.2177),
	city("Caxias do Sul", "RS", -29.1678, -51.1794),
	city("Pelotas", "RS", -31.7654, -52.3376),
	city("Porto Velho", "RO", -8.7612, -63.9004),
	city("Boa Vista", "RR", 2.8235, -60.6758),
	city("Florianópolis", "SC", -27.5954, -48.5480),
	city("Joinville", "SC", -26.3045, -48.8487),
	city("Chapecó", "SC", -27.1004, -52.6152),
	city("São Paulo", "SP", -23.5505, -46.6333),
	city("Campinas", "SP", -22.9056, -47.0608),
	city("Ribeirão Preto", "SP", -21.1775, -47.8103),
	city("São José dos Campos", "SP", -23.1896, -45.8841),
	city("Sorocaba", "SP", -23.5015, -47.4526),
	city("Santos", "SP", -23.9608, -46.3336),
	city("São José do Rio Preto", "SP", -20.8113, -49.3758),
	city("Bauru", "SP", -22.3246, -49.0871),
	city("Presidente Prudente", "SP", -22.1207, -51.3925),
	city("Aracaju", "SE", -10.9472, -37.0731),
	city("Palmas", "TO", -10.2491, -48.3243),
	city("Araguaína", "TO", -7.1920, -48.2048),
}
