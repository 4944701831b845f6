package api

import (
	"net/url"
	"strings"
	"testing"

	"tourhive/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/utils/tests"
)

// dryRunDB 构造一个只生成 SQL、不执行的 gorm 会话。
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(tests.DummyDialector{}, &gorm.Config{DryRun: true})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	return db
}

func buildSQL(t *testing.T, query url.Values) string {
	t.Helper()
	db := dryRunDB(t).Model(&model.Tour{})
	db = applyTourFilters(query, db)
	db = applyTourSort(query, db)
	db = applyTourFields(query, db)
	db = applyTourPagination(query, db)

	tours := []model.Tour{}
	stmt := db.Find(&tours).Statement
	return stmt.SQL.String()
}

func TestApplyTourFilters_EqualityAndRange(t *testing.T) {
	query := url.Values{}
	query.Set("difficulty", "easy")
	query.Set("price[lt]", "1000")
	query.Set("duration[gte]", "5")

	sql := buildSQL(t, query)
	for _, want := range []string{"difficulty = ?", "price < ?", "duration >= ?"} {
		if !strings.Contains(sql, want) {
			t.Errorf("expected %q in generated SQL: %s", want, sql)
		}
	}
}

func TestApplyTourFilters_IgnoresUnknownFields(t *testing.T) {
	query := url.Values{}
	query.Set("password", "x")
	query.Set("secret_tour", "false")
	query.Set("price[drop]", "1")

	sql := buildSQL(t, query)
	if strings.Contains(sql, "password") {
		t.Errorf("unknown field leaked into SQL: %s", sql)
	}
	if strings.Contains(sql, "secret_tour = ?") {
		t.Errorf("non-whitelisted column must be ignored: %s", sql)
	}
}

func TestApplyTourSort(t *testing.T) {
	query := url.Values{}
	query.Set("sort", "-price,name")

	sql := buildSQL(t, query)
	if !strings.Contains(sql, "price DESC") {
		t.Errorf("expected price DESC in SQL: %s", sql)
	}
	if !strings.Contains(sql, "name ASC") {
		t.Errorf("expected name ASC in SQL: %s", sql)
	}
}

func TestApplyTourSort_Default(t *testing.T) {
	sql := buildSQL(t, url.Values{})
	if !strings.Contains(sql, "created_at DESC") {
		t.Errorf("expected default ordering by created_at DESC: %s", sql)
	}
}

func TestApplyTourFields_Projection(t *testing.T) {
	query := url.Values{}
	query.Set("fields", "name,price,password")

	sql := buildSQL(t, query)
	if !strings.Contains(sql, "name") || !strings.Contains(sql, "price") {
		t.Errorf("expected selected columns in SQL: %s", sql)
	}
	if strings.Contains(sql, "password") {
		t.Errorf("unknown field leaked into projection: %s", sql)
	}
}

func TestApplyTourPagination_Caps(t *testing.T) {
	if got := parsePositiveInt("", 100); got != 100 {
		t.Errorf("empty value: expected default 100, got %d", got)
	}
	if got := parsePositiveInt("-3", 100); got != 100 {
		t.Errorf("negative value: expected default, got %d", got)
	}
	if got := parsePositiveInt("25", 100); got != 25 {
		t.Errorf("expected 25, got %d", got)
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"The Forest Hiker":   "the-forest-hiker",
		"  Sea  Explorer!  ": "sea-explorer",
		"CITY walker":        "city-walker",
	}
	for in, want := range cases {
		if got := slugify(in); got != want {
			t.Errorf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
