package straincrawler

import (
	"context"
	_ "embed"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

//go:embed schema.sql
var schemaSQL string

// pgxPool is the subset of *pgxpool.Pool the loader uses.
type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

type StrainRow struct {
	Name        string
	Url         *string
	Type        StrainType
	Thc         *string
	Rating      *float64
	ReviewCount int
	TopEffect   *string
	Category    *string
	ImagePath   *string
	ImageUrl    *string
	Description *string
}

// Pair links a strain to one value of a junction table.
type Pair struct {
	Strain string
	Value  string
}

type EffectRow struct {
	Effect string
	Type   string
}

type TerpeneRow struct {
	Name        string
	Type        *string
	Description *string
}

type BenefitRow struct {
	Strain     string
	Condition  string
	Percentage *int
}

type GeneticsRow struct {
	Strain       string
	Related      string
	Relationship string
}

// LoadRows is the relational form of a set of enriched records, one slice per table.
type LoadRows struct {
	Strains         []StrainRow
	Akas            []Pair
	Effects         []EffectRow
	Flavors         []string
	Terpenes        []TerpeneRow
	Conditions      []string
	StrainEffects   []Pair
	StrainFlavors   []Pair
	StrainTerpenes  []Pair
	MedicalBenefits []BenefitRow
	Genetics        []GeneticsRow
}

type LoadReport struct {
	Inserted        map[string]int64
	StagesCommitted int
	Duration        time.Duration
}

type Loader struct {
	pool   pgxPool
	logger logger
}

func NewLoader(pool pgxPool, log logger) *Loader {
	return &Loader{pool: pool, logger: log}
}

// postgresDSN builds the connection url from the DB_* settings.
func postgresDSN(c *configService) (string, error) {
	if driver := c.GetString("DB_DRIVER"); driver != "postgres" {
		return "", eris.Errorf("unsupported DB_DRIVER %q", driver)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.EnvString("DB_USER"), c.EnvString("DB_PASSWORD")),
		Host:     c.GetString("DB_HOST") + ":" + strconv.Itoa(c.GetInt("DB_PORT")),
		Path:     "/" + c.EnvString("DB_NAME"),
		RawQuery: "sslmode=" + c.GetString("DB_SSLMODE"),
	}
	return u.String(), nil
}

// OpenLoader connects to the configured database and pings it. The caller closes the pool
// through Loader.Close.
func (app *Crawler) OpenLoader(ctx context.Context) (*Loader, error) {
	dsn, err := postgresDSN(app.Config)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrapf(err, "database %s:%d is not reachable", app.Config.GetString("DB_HOST"), app.Config.GetInt("DB_PORT"))
	}
	return NewLoader(pool, app.Logger), nil
}

func (l *Loader) Close() {
	l.pool.Close()
}

// Migrate creates the tables that do not exist yet.
func (l *Loader) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := l.pool.Exec(ctx, stmt); err != nil {
			return &PersistenceError{Op: "migrate", Err: eris.Wrap(err, firstLine(stmt))}
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

type tableInsert struct {
	table string
	sql   string
	args  [][]any
}

type loadStage struct {
	name    string
	inserts []tableInsert
}

func (rows LoadRows) stages() []loadStage {
	strains := make([][]any, len(rows.Strains))
	for i, s := range rows.Strains {
		strains[i] = []any{s.Name, s.Url, string(s.Type), s.Thc, s.Rating, s.ReviewCount, s.TopEffect, s.Category, s.ImagePath, s.ImageUrl, s.Description}
	}
	effects := make([][]any, len(rows.Effects))
	for i, e := range rows.Effects {
		effects[i] = []any{e.Effect, e.Type}
	}
	terpenes := make([][]any, len(rows.Terpenes))
	for i, t := range rows.Terpenes {
		terpenes[i] = []any{t.Name, t.Type, t.Description}
	}
	benefits := make([][]any, len(rows.MedicalBenefits))
	for i, b := range rows.MedicalBenefits {
		benefits[i] = []any{b.Strain, b.Condition, b.Percentage}
	}
	genetics := make([][]any, len(rows.Genetics))
	for i, g := range rows.Genetics {
		genetics[i] = []any{g.Strain, g.Related, g.Relationship}
	}

	return []loadStage{
		{name: "strains", inserts: []tableInsert{
			{"strains", `INSERT INTO strains (name, url, type, thc, rating, review_count, top_effect, category, image_path, image_url, description) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) ON CONFLICT (name) DO NOTHING`, strains},
			{"strain_akas", `INSERT INTO strain_akas (strain_name, aka) VALUES ($1, $2) ON CONFLICT DO NOTHING`, pairArgs(rows.Akas)},
		}},
		{name: "lookups", inserts: []tableInsert{
			{"effects", `INSERT INTO effects (effect, type) VALUES ($1, $2) ON CONFLICT DO NOTHING`, effects},
			{"flavors", `INSERT INTO flavors (flavor) VALUES ($1) ON CONFLICT DO NOTHING`, singleArgs(rows.Flavors)},
			{"terpenes", `INSERT INTO terpenes (terpene_name, terpene_type, description) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, terpenes},
			{"medical_conditions", `INSERT INTO medical_conditions (condition_name) VALUES ($1) ON CONFLICT DO NOTHING`, singleArgs(rows.Conditions)},
		}},
		{name: "relations", inserts: []tableInsert{
			{"strain_effects", `INSERT INTO strain_effects (strain_name, effect) VALUES ($1, $2) ON CONFLICT DO NOTHING`, pairArgs(rows.StrainEffects)},
			{"strain_flavors", `INSERT INTO strain_flavors (strain_name, flavor) VALUES ($1, $2) ON CONFLICT DO NOTHING`, pairArgs(rows.StrainFlavors)},
			{"strain_terpenes", `INSERT INTO strain_terpenes (strain_name, terpene_name) VALUES ($1, $2) ON CONFLICT DO NOTHING`, pairArgs(rows.StrainTerpenes)},
			{"strain_medical_benefits", `INSERT INTO strain_medical_benefits (strain_name, condition_name, percentage) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, benefits},
			{"strain_genetics", `INSERT INTO strain_genetics (strain_name, related_strain, relationship) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, genetics},
		}},
	}
}

func pairArgs(pairs []Pair) [][]any {
	out := make([][]any, len(pairs))
	for i, p := range pairs {
		out[i] = []any{p.Strain, p.Value}
	}
	return out
}

func singleArgs(values []string) [][]any {
	out := make([][]any, len(values))
	for i, v := range values {
		out[i] = []any{v}
	}
	return out
}

// Load inserts records stage by stage, one transaction per stage. A failing stage is rolled back
// and the later stages are skipped; the report still counts what earlier stages committed.
func (l *Loader) Load(ctx context.Context, records []EnrichedStrain) (*LoadReport, error) {
	start := time.Now()
	report := &LoadReport{Inserted: map[string]int64{}}
	defer func() { report.Duration = time.Since(start) }()

	for _, stage := range BuildRows(records).stages() {
		counts, err := l.runStage(ctx, stage)
		if err != nil {
			l.logger.Error("Stage %s rolled back: %v", stage.name, err)
			return report, &PersistenceError{Op: "load " + stage.name, Committed: report.StagesCommitted, Err: err}
		}
		for table, n := range counts {
			report.Inserted[table] = n
			l.logger.Info("Inserted %d rows into %s", n, table)
		}
		report.StagesCommitted++
	}
	return report, nil
}

func (l *Loader) runStage(ctx context.Context, stage loadStage) (map[string]int64, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "failed to begin transaction")
	}

	counts := map[string]int64{}
	for _, ins := range stage.inserts {
		for _, args := range ins.args {
			tag, err := tx.Exec(ctx, ins.sql, args...)
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, eris.Wrapf(err, "insert into %s %v", ins.table, args[0])
			}
			counts[ins.table] += tag.RowsAffected()
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "failed to commit")
	}
	return counts, nil
}

// BuildRows flattens records into table rows. Blank values are skipped, duplicates are dropped,
// an unknown type becomes Hybrid and empty optional text becomes NULL. An effect listed as both
// positive and negative keeps the last type seen.
func BuildRows(records []EnrichedStrain) LoadRows {
	var rows LoadRows
	seen := map[string]bool{}
	once := func(parts ...string) bool {
		key := strings.Join(parts, "\x00")
		if seen[key] {
			return false
		}
		seen[key] = true
		return true
	}

	effectIndex := map[string]int{}
	addEffect := func(strain, effect, kind string) {
		if i, ok := effectIndex[effect]; ok {
			rows.Effects[i].Type = kind
		} else {
			effectIndex[effect] = len(rows.Effects)
			rows.Effects = append(rows.Effects, EffectRow{Effect: effect, Type: kind})
		}
		if once("strain_effects", strain, effect) {
			rows.StrainEffects = append(rows.StrainEffects, Pair{strain, effect})
		}
	}

	for _, rec := range records {
		name := strings.TrimSpace(rec.Name)
		if name == "" || !once("strains", name) {
			continue
		}
		row := StrainRow{
			Name:        name,
			Url:         nullString(rec.Url),
			Type:        NormalizeStrainType(string(rec.Type)),
			Thc:         nullString(rec.Thc),
			ReviewCount: rec.ReviewCount,
			TopEffect:   nullString(rec.TopEffect),
			Category:    nullString(rec.Category),
			ImagePath:   nullString(deref(rec.ImagePath)),
			ImageUrl:    nullString(deref(rec.ImageUrl)),
			Description: nullString(rec.Description),
		}
		if rec.Rating > 0 {
			rating := rec.Rating
			row.Rating = &rating
		}
		rows.Strains = append(rows.Strains, row)

		for _, aka := range rec.Akas {
			if aka = strings.TrimSpace(aka); aka != "" && once("strain_akas", name, aka) {
				rows.Akas = append(rows.Akas, Pair{name, aka})
			}
		}
		for _, e := range rec.PositiveEffects {
			if e = strings.TrimSpace(e); e != "" {
				addEffect(name, e, "positive")
			}
		}
		for _, e := range rec.NegativeEffects {
			if e = strings.TrimSpace(e); e != "" {
				addEffect(name, e, "negative")
			}
		}
		for _, f := range rec.Flavors {
			if f = strings.TrimSpace(f); f == "" {
				continue
			}
			if once("flavors", f) {
				rows.Flavors = append(rows.Flavors, f)
			}
			if once("strain_flavors", name, f) {
				rows.StrainFlavors = append(rows.StrainFlavors, Pair{name, f})
			}
		}
		for _, t := range rec.DetailedTerpenes {
			tn := strings.TrimSpace(t.Name)
			if tn == "" {
				continue
			}
			if once("terpenes", tn) {
				rows.Terpenes = append(rows.Terpenes, TerpeneRow{Name: tn, Type: nullString(t.Type), Description: nullString(t.Description)})
			}
			if once("strain_terpenes", name, tn) {
				rows.StrainTerpenes = append(rows.StrainTerpenes, Pair{name, tn})
			}
		}
		for _, h := range rec.HelpsWith {
			cond := strings.TrimSpace(h.Condition)
			if cond == "" {
				continue
			}
			if once("medical_conditions", cond) {
				rows.Conditions = append(rows.Conditions, cond)
			}
			if once("strain_medical_benefits", name, cond) {
				benefit := BenefitRow{Strain: name, Condition: cond}
				if h.Percentage > 0 {
					pct := clampPercentage(h.Percentage)
					benefit.Percentage = &pct
				}
				rows.MedicalBenefits = append(rows.MedicalBenefits, benefit)
			}
		}
		for _, rel := range []struct {
			names []string
			kind  string
		}{{rec.Genetics.Parents, "parent"}, {rec.Genetics.Children, "child"}} {
			for _, related := range rel.names {
				if related = strings.TrimSpace(related); related != "" && once("strain_genetics", name, related, rel.kind) {
					rows.Genetics = append(rows.Genetics, GeneticsRow{Strain: name, Related: related, Relationship: rel.kind})
				}
			}
		}
	}
	return rows
}

func nullString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// SummaryRows lists the inserted row count per table, in load order.
func (r *LoadReport) SummaryRows() [][2]interface{} {
	var out [][2]interface{}
	for _, stage := range (LoadRows{}).stages() {
		for _, ins := range stage.inserts {
			out = append(out, [2]interface{}{ins.table, r.Inserted[ins.table]})
		}
	}
	out = append(out, [2]interface{}{"stages committed", fmt.Sprintf("%d/3", r.StagesCommitted)})
	return append(out, [2]interface{}{"duration", formatDuration(r.Duration)})
}
