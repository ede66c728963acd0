package linker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/finradar/finradar/internal/logging"
)

// knownAliases is the read-only seed of normalized phrase → ticker. Learned
// aliases never shadow entries here.
var knownAliases = map[string]string{
	"сбер": "SBER", "сбербанк": "SBER", "sberbank": "SBER",
	"сберегательный": "SBER", "сбербанк россии": "SBER",
	"газпром": "GAZP", "gazprom": "GAZP",
	"втб": "VTBR", "vtb": "VTBR",
	"роснефть": "ROSN", "rosneft": "ROSN",
	"лукойл": "LKOH", "lukoil": "LKOH",
	"яндекс": "YNDX", "yandex": "YNDX",
	"мтс": "MTSS", "mts": "MTSS", "мобильные телесистемы": "MTSS",
	"норникель": "GMKN", "норильский никель": "GMKN", "norilsk": "GMKN",
	"гмк": "GMKN", "гмк норильский никель": "GMKN",
	"новатэк": "NVTK", "novatek": "NVTK",
	"полюс": "PLZL", "полюс золото": "PLZL", "polyus": "PLZL",
	"алроса": "ALRS", "alrosa": "ALRS",
	"магнит": "MGNT", "magnit": "MGNT",
	"x5": "FIVE", "x5 retail": "FIVE", "пятерочка": "FIVE", "перекресток": "FIVE",
	"мегафон": "MFON", "megafon": "MFON",
	"аэрофлот": "AFLT", "aeroflot": "AFLT",
	"русгидро": "HYDR", "rushydro": "HYDR",
	"интер рао": "IRAO", "inter rao": "IRAO",
	"фск": "FEES", "фск еэс": "FEES", "россети": "FEES",
	"сургут": "SNGS", "сургутнефтегаз": "SNGS", "surgutneftegas": "SNGS",
	"татнефть": "TATN", "tatneft": "TATN",
	"нлмк": "NLMK", "новолипецкий": "NLMK", "nlmk": "NLMK",
	"ммк": "MAGN", "магнитогорский": "MAGN", "mmk": "MAGN",
	"северсталь": "CHMF", "severstal": "CHMF",
	"пик": "PIKK", "pik": "PIKK",
	"лср": "LSRG", "lsr": "LSRG",
	"детский мир": "DSKY", "detsky mir": "DSKY",
	"мосбиржа": "MOEX", "московская биржа": "MOEX", "moex": "MOEX",
	"русал": "RUAL", "rusal": "RUAL",
	"фосагро": "PHOR", "phosagro": "PHOR",
	"мкб": "CBOM", "московский кредитный": "CBOM",
	"позитив": "POSI", "positive technologies": "POSI",
	"озон": "OZON", "ozon": "OZON",
	"хэдхантер": "HHRU", "headhunter": "HHRU",
	"мать и дитя": "MDMG",
	"эн+":         "ENPG", "en+": "ENPG",
}

// AliasTable maps normalized company phrases to tickers. The known set is a
// compile-time table; learned entries are appended at runtime and persisted
// as JSON with an atomic replace (write-to-temp + rename).
type AliasTable struct {
	mu      sync.RWMutex
	learned map[string]string
	path    string
	logger  *logging.Logger
}

// NewAliasTable loads learned aliases from path if it exists. A missing
// file is not an error.
func NewAliasTable(path string) (*AliasTable, error) {
	t := &AliasTable{
		learned: make(map[string]string),
		path:    path,
		logger:  logging.GetLogger("linker.aliases"),
	}
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading learned aliases %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &t.learned); err != nil {
		return nil, fmt.Errorf("parsing learned aliases %s: %w", path, err)
	}
	t.logger.Info("loaded %d learned aliases from %s", len(t.learned), path)
	return t, nil
}

// Resolve returns the ticker for a normalized phrase. Known aliases take
// precedence over learned ones.
func (t *AliasTable) Resolve(normalized string) (string, bool) {
	if ticker, ok := knownAliases[normalized]; ok {
		return ticker, true
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	ticker, ok := t.learned[normalized]
	return ticker, ok
}

// Learn records a new alias and flushes the learned set to disk. Learning a
// phrase that is already known is a no-op; re-learning an existing learned
// alias with the same ticker is also a no-op.
func (t *AliasTable) Learn(normalized, ticker string) error {
	if normalized == "" || ticker == "" {
		return fmt.Errorf("alias and ticker must not be empty")
	}
	if _, known := knownAliases[normalized]; known {
		return nil
	}

	t.mu.Lock()
	if existing, ok := t.learned[normalized]; ok && existing == ticker {
		t.mu.Unlock()
		return nil
	}
	t.learned[normalized] = ticker
	snapshot := make(map[string]string, len(t.learned))
	for k, v := range t.learned {
		snapshot[k] = v
	}
	t.mu.Unlock()

	t.logger.InfoWithFields("learned alias",
		logging.Field("alias", normalized),
		logging.Field("ticker", ticker),
	)
	return t.flush(snapshot)
}

// flush writes the snapshot atomically. Readers are never blocked.
func (t *AliasTable) flush(snapshot map[string]string) error {
	if t.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("creating alias dir: %w", err)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding learned aliases: %w", err)
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing learned aliases: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("replacing learned aliases: %w", err)
	}
	return nil
}

// LearnedCount returns the number of learned aliases.
func (t *AliasTable) LearnedCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.learned)
}
