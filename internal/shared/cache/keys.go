package cache

// Chaves das oportunidades atuais, escritas pelo opportunity-processor e lidas pelo arb-api
const OppsSportsKey = "opps:sports"

// OppsCurrentKey é o hash id -> oportunidade de um esporte
func OppsCurrentKey(sport string) string { return "opps:current:" + sport }

// OppKey guarda a oportunidade sozinha, com TTL próprio
func OppKey(id string) string { return "opp:" + id }
