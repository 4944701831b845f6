package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// 查询参数里允许过滤/排序的字段 → 数据库列的白名单。
// 不在白名单里的参数一律忽略，不能让客户端拼任意列名。
var tourColumns = map[string]string{
	"duration":        "duration",
	"maxGroupSize":    "max_group_size",
	"difficulty":      "difficulty",
	"ratingsAverage":  "ratings_average",
	"ratingsQuantity": "ratings_quantity",
	"price":           "price",
	"name":            "name",
	"createdAt":       "created_at",
}

var filterOps = map[string]string{
	"gte": ">=",
	"gt":  ">",
	"lte": "<=",
	"lt":  "<",
}

const (
	defaultPageSize = 100
	maxPageSize     = 100
)

// applyTourFilters 把查询字符串翻译为 WHERE 条件。
//
// 支持两种形式：
//
//	?difficulty=easy          等值过滤
//	?price[lt]=1000           区间过滤（gte/gt/lte/lt）
func applyTourFilters(query url.Values, db *gorm.DB) *gorm.DB {
	for key, values := range query {
		if len(values) == 0 || values[0] == "" {
			continue
		}
		value := values[0]

		// price[lt]=1000 这种形式，key 形如 "price[lt]"
		field, op := key, ""
		if i := strings.IndexByte(key, '['); i > 0 && strings.HasSuffix(key, "]") {
			field = key[:i]
			op = key[i+1 : len(key)-1]
		}

		column, ok := tourColumns[field]
		if !ok {
			continue
		}

		if op == "" {
			db = db.Where(fmt.Sprintf("%s = ?", column), value)
			continue
		}
		sqlOp, ok := filterOps[op]
		if !ok {
			continue
		}
		db = db.Where(fmt.Sprintf("%s %s ?", column, sqlOp), value)
	}
	return db
}

// applyTourSort 把 ?sort=-price,name 翻译为 ORDER BY。
//
// 前缀 "-" 表示降序；未指定排序时按创建时间倒序。
func applyTourSort(query url.Values, db *gorm.DB) *gorm.DB {
	sortParam := query.Get("sort")
	if sortParam == "" {
		return db.Order("created_at DESC")
	}

	for _, part := range strings.Split(sortParam, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		desc := false
		if strings.HasPrefix(part, "-") {
			desc = true
			part = part[1:]
		}
		column, ok := tourColumns[part]
		if !ok {
			continue
		}
		if desc {
			db = db.Order(column + " DESC")
		} else {
			db = db.Order(column + " ASC")
		}
	}
	return db
}

// applyTourFields 把 ?fields=name,price 翻译为 SELECT 投影。
//
// 未选中的字段在响应里是零值；id 始终返回。
func applyTourFields(query url.Values, db *gorm.DB) *gorm.DB {
	fieldsParam := query.Get("fields")
	if fieldsParam == "" {
		return db
	}

	columns := []string{"id"}
	for _, part := range strings.Split(fieldsParam, ",") {
		column, ok := tourColumns[strings.TrimSpace(part)]
		if !ok {
			continue
		}
		columns = append(columns, column)
	}
	if len(columns) == 1 {
		return db
	}
	return db.Select(columns)
}

// applyTourPagination 把 ?page=2&limit=10 翻译为 LIMIT/OFFSET。
func applyTourPagination(query url.Values, db *gorm.DB) *gorm.DB {
	limit := parsePositiveInt(query.Get("limit"), defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page := parsePositiveInt(query.Get("page"), 1)

	return db.Limit(limit).Offset((page - 1) * limit)
}

func parsePositiveInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
