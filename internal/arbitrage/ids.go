package arbitrage

import (
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/radieske/sports-arbitrage-platform/pkg/contracts/events"
)

var opportunityNamespace = uuid.MustParse("6f1c7a52-2a47-4c53-9b1e-8e0d5f3c9a10")

// OpportunityID é determinístico: a mesma combinação (evento, mercado, casas e
// resultados) mantém o id entre ciclos mesmo que o preço mude.
func OpportunityID(eventID, market string, legs []events.Leg) string {
	parts := make([]string, len(legs))
	for i, l := range legs {
		p := l.Bookmaker + ":" + l.Outcome
		if l.Point != nil {
			p += ":" + strconv.FormatFloat(*l.Point, 'f', -1, 64)
		}
		parts[i] = p
	}
	sort.Strings(parts)
	name := eventID + "|" + market + "|" + strings.Join(parts, "|")
	return uuid.NewSHA1(opportunityNamespace, []byte(name)).String()
}
