package linker

// sectorMapping groups MOEX tickers by sector. Used for breadth scoring and
// sector-scoped watcher rules.
var sectorMapping = map[string][]string{
	"oil_gas": {
		"GAZP", "ROSN", "LKOH", "NVTK", "SNGS", "TATN", "TRNFP",
		"SNGSP", "TATNP",
	},
	"metals": {
		"GMKN", "NLMK", "CHMF", "MAGN", "PLZL", "ALRS", "RUAL", "VSMO",
	},
	"banks": {
		"SBER", "VTBR", "CBOM", "BSPB", "TCSG", "SBERP",
	},
	"telecom": {
		"MTSS", "MFON", "RTKM", "RTKMP",
	},
	"retail": {
		"MGNT", "FIVE", "DSKY", "LENT", "FIXP", "OZON", "MVID",
	},
	"energy": {
		"HYDR", "IRAO", "FEES", "UPRO", "TGKA", "OGKB",
	},
	"transport": {
		"AFLT", "NMTP", "FESH", "GLTR",
	},
	"realestate": {
		"PIKK", "LSRG", "SMLT", "ETLN",
	},
	"it": {
		"YNDX", "VKCO", "POSI", "HHRU", "CIAN",
	},
	"chemistry": {
		"PHOR", "KAZT", "NKNC", "AKRN",
	},
	"consumer": {
		"ABRD", "AQUA", "BELU", "GCHE", "MDMG",
	},
	"machinery": {
		"KMAZ", "SGZH", "UWGN", "TRMK",
	},
	"agriculture": {
		"AGRO", "RSGR",
	},
}

var tickerToSector = func() map[string]string {
	m := make(map[string]string)
	for sector, tickers := range sectorMapping {
		for _, t := range tickers {
			// First sector wins for the few dual-listed tickers.
			if _, ok := m[t]; !ok {
				m[t] = sector
			}
		}
	}
	return m
}()

// SectorForTicker returns the sector a ticker belongs to, or "".
func SectorForTicker(ticker string) string {
	return tickerToSector[ticker]
}

// TickersForSector returns all tickers mapped to a sector.
func TickersForSector(sector string) []string {
	return sectorMapping[sector]
}

// CountSectors returns the number of distinct sectors covered by tickers.
func CountSectors(tickers []string) int {
	seen := make(map[string]bool)
	for _, t := range tickers {
		if s := tickerToSector[t]; s != "" {
			seen[s] = true
		}
	}
	return len(seen)
}
