package moex

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/finradar/finradar/internal/models"
)

// Candidate scoring: substring containment in short/long name, traded flag,
// equity market, allow-listed primary board, ISIN presence. Candidates below
// MinSearchScore are rejected.
const (
	scoreShortName = 50
	scoreLongName  = 30
	scoreTraded    = 20
	scoreEquity    = 15
	scoreBoard     = 10
	scoreISIN      = 25

	// MinSearchScore is the acceptance floor for tier-3 linking.
	MinSearchScore = 50
)

var allowedBoards = map[string]bool{"TQBR": true, "TQTF": true}

// SearchResult is one scored security candidate from ISS search.
type SearchResult struct {
	Instrument models.Instrument
	ShortName  string
	FullName   string
	Score      int
}

// SearchSecurities queries the ISS security search endpoint and returns
// candidates scored against the query, best first.
func (c *Client) SearchSecurities(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("iss.meta", "off")
	params.Set("iss.only", "securities")

	sections, err := c.get(ctx, "/securities.json", params, c.cfg.SearchTimeout)
	if err != nil {
		return nil, err
	}

	table, ok := sections["securities"]
	if !ok {
		return nil, nil
	}

	queryLower := strings.ToLower(query)
	var results []SearchResult
	for _, row := range table.rows() {
		res := scoreCandidate(queryLower, row)
		if res.Instrument.Symbol == "" {
			continue
		}
		results = append(results, res)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

func scoreCandidate(queryLower string, row map[string]interface{}) SearchResult {
	shortName := asString(row["shortname"])
	fullName := asString(row["name"])
	isin := asString(row["isin"])
	board := asString(row["primary_boardid"])
	group := asString(row["group"])
	traded := asFloat(row["is_traded"]) == 1

	score := 0
	if strings.Contains(strings.ToLower(shortName), queryLower) {
		score += scoreShortName
	}
	if strings.Contains(strings.ToLower(fullName), queryLower) {
		score += scoreLongName
	}
	if traded {
		score += scoreTraded
	}
	if strings.Contains(group, "shares") || strings.Contains(group, "stock") {
		score += scoreEquity
	}
	if allowedBoards[board] {
		score += scoreBoard
	}
	if isin != "" {
		score += scoreISIN
	}

	return SearchResult{
		Instrument: models.Instrument{
			Symbol:       asString(row["secid"]),
			Exchange:     "MOEX",
			ISIN:         isin,
			PrimaryBoard: board,
			IsTraded:     traded,
			Market:       group,
			SecurityType: asString(row["type"]),
		},
		ShortName: shortName,
		FullName:  fullName,
		Score:     score,
	}
}
