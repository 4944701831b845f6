package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"tourhive/internal/model"
	"tourhive/internal/pkg/cache"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const tourStatsCacheKey = "tour_stats"

// createTourRequest 创建旅行团的请求参数。
type createTourRequest struct {
	Name          string  `json:"name" binding:"required"`
	Duration      int     `json:"duration" binding:"required,gt=0"`
	MaxGroupSize  int     `json:"maxGroupSize" binding:"required,gt=0"`
	Difficulty    string  `json:"difficulty" binding:"required"`
	Price         float64 `json:"price" binding:"required,gt=0"`
	PriceDiscount float64 `json:"priceDiscount"`
	Summary       string  `json:"summary" binding:"required"`
	Description   string  `json:"description"`
	ImageCover    string  `json:"imageCover"`
	SecretTour    bool    `json:"secretTour"`
}

type updateTourRequest struct {
	Name          *string  `json:"name"`
	Duration      *int     `json:"duration"`
	MaxGroupSize  *int     `json:"maxGroupSize"`
	Difficulty    *string  `json:"difficulty"`
	Price         *float64 `json:"price"`
	PriceDiscount *float64 `json:"priceDiscount"`
	Summary       *string  `json:"summary"`
	Description   *string  `json:"description"`
	ImageCover    *string  `json:"imageCover"`
	SecretTour    *bool    `json:"secretTour"`
}

type tourResponse struct {
	ID              uint    `json:"id"`
	Name            string  `json:"name"`
	Slug            string  `json:"slug"`
	Duration        int     `json:"duration"`
	MaxGroupSize    int     `json:"maxGroupSize"`
	Difficulty      string  `json:"difficulty"`
	RatingsAverage  float64 `json:"ratingsAverage"`
	RatingsQuantity int     `json:"ratingsQuantity"`
	Price           float64 `json:"price"`
	PriceDiscount   float64 `json:"priceDiscount,omitempty"`
	Summary         string  `json:"summary"`
	Description     string  `json:"description,omitempty"`
	ImageCover      string  `json:"imageCover,omitempty"`
}

func toTourResponse(t *model.Tour) tourResponse {
	return tourResponse{
		ID:              t.ID,
		Name:            t.Name,
		Slug:            t.Slug,
		Duration:        t.Duration,
		MaxGroupSize:    t.MaxGroupSize,
		Difficulty:      string(t.Difficulty),
		RatingsAverage:  t.RatingsAverage,
		RatingsQuantity: t.RatingsQuantity,
		Price:           t.Price,
		PriceDiscount:   t.PriceDiscount,
		Summary:         t.Summary,
		Description:     t.Description,
		ImageCover:      t.ImageCover,
	}
}

// handleListTours 返回旅行团列表，支持过滤/排序/分页。
//
// GET /tours?difficulty=easy&price[lt]=1000&sort=-price&page=1&limit=10
func (s *Server) handleListTours(c *gin.Context) {
	query := c.Request.URL.Query()

	db := s.db.WithContext(c.Request.Context()).Model(&model.Tour{}).
		Where("secret_tour = ?", false)
	db = applyTourFilters(query, db)
	db = applyTourSort(query, db)
	db = applyTourFields(query, db)
	db = applyTourPagination(query, db)

	tours := []model.Tour{}
	if err := db.Find(&tours).Error; err != nil {
		s.logger.Error("list tours failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list tours failed"})
		return
	}

	out := make([]tourResponse, 0, len(tours))
	for i := range tours {
		out = append(out, toTourResponse(&tours[i]))
	}
	c.JSON(http.StatusOK, gin.H{"results": len(out), "tours": out})
}

// handleTopTours 是热门榜单别名：评分最高的 5 个便宜团。
//
// GET /tours/top-5-cheap
func (s *Server) handleTopTours(c *gin.Context) {
	alias := url.Values{}
	alias.Set("sort", "-ratingsAverage,price")
	alias.Set("limit", "5")
	c.Request.URL.RawQuery = alias.Encode()
	s.handleListTours(c)
}

// handleGetTour 返回单个旅行团及其评论。
func (s *Server) handleGetTour(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tour id"})
		return
	}

	var tour model.Tour
	if err := s.db.WithContext(c.Request.Context()).
		Preload("Reviews").
		First(&tour, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no tour found with that id"})
			return
		}
		s.logger.Error("get tour failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get tour failed"})
		return
	}

	resp := gin.H{"tour": toTourResponse(&tour)}
	reviews := make([]reviewResponse, 0, len(tour.Reviews))
	for i := range tour.Reviews {
		reviews = append(reviews, toReviewResponse(&tour.Reviews[i]))
	}
	resp["reviews"] = reviews
	c.JSON(http.StatusOK, resp)
}

// handleCreateTour 创建旅行团。
//
// POST /tours
func (s *Server) handleCreateTour(c *gin.Context) {
	var req createTourRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	difficulty := model.Difficulty(strings.ToLower(strings.TrimSpace(req.Difficulty)))
	if !difficulty.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "difficulty is either: easy, medium, difficult"})
		return
	}
	// 折扣价必须低于原价
	if req.PriceDiscount > 0 && req.PriceDiscount >= req.Price {
		c.JSON(http.StatusBadRequest, gin.H{"error": "discount price should be below regular price"})
		return
	}

	name := strings.TrimSpace(req.Name)
	tour := model.Tour{
		Name:          name,
		Slug:          slugify(name),
		Duration:      req.Duration,
		MaxGroupSize:  req.MaxGroupSize,
		Difficulty:    difficulty,
		Price:         req.Price,
		PriceDiscount: req.PriceDiscount,
		Summary:       strings.TrimSpace(req.Summary),
		Description:   req.Description,
		ImageCover:    req.ImageCover,
		SecretTour:    req.SecretTour,
	}
	if err := s.db.WithContext(c.Request.Context()).Create(&tour).Error; err != nil {
		s.logger.Error("create tour failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create tour failed"})
		return
	}

	s.invalidateTourStats(c)
	c.JSON(http.StatusCreated, gin.H{"tour": toTourResponse(&tour)})
}

// handleUpdateTour 部分更新旅行团字段。
//
// PATCH /tours/:id
func (s *Server) handleUpdateTour(c *gin.Context) {
	id := c.Param("id")
	var req updateTourRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid name"})
			return
		}
		updates["name"] = name
		updates["slug"] = slugify(name)
	}
	if req.Duration != nil {
		if *req.Duration <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duration"})
			return
		}
		updates["duration"] = *req.Duration
	}
	if req.MaxGroupSize != nil {
		if *req.MaxGroupSize <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid maxGroupSize"})
			return
		}
		updates["max_group_size"] = *req.MaxGroupSize
	}
	if req.Difficulty != nil {
		difficulty := model.Difficulty(strings.ToLower(strings.TrimSpace(*req.Difficulty)))
		if !difficulty.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "difficulty is either: easy, medium, difficult"})
			return
		}
		updates["difficulty"] = difficulty
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
			return
		}
		updates["price"] = *req.Price
	}
	if req.PriceDiscount != nil {
		updates["price_discount"] = *req.PriceDiscount
	}
	if req.Summary != nil {
		updates["summary"] = strings.TrimSpace(*req.Summary)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.ImageCover != nil {
		updates["image_cover"] = *req.ImageCover
	}
	if req.SecretTour != nil {
		updates["secret_tour"] = *req.SecretTour
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no updates"})
		return
	}

	res := s.db.WithContext(c.Request.Context()).Model(&model.Tour{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		s.logger.Error("update tour failed", slog.String("error", res.Error.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update tour failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no tour found with that id"})
		return
	}

	s.invalidateTourStats(c)
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// handleDeleteTour 删除旅行团及其评论。
//
// DELETE /tours/:id
func (s *Server) handleDeleteTour(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tour id"})
		return
	}

	err = s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tour_id = ?", uint(id)).Delete(&model.Review{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Tour{}, uint(id))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no tour found with that id"})
			return
		}
		s.logger.Error("delete tour failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete tour failed"})
		return
	}

	s.invalidateTourStats(c)
	c.JSON(http.StatusNoContent, nil)
}

// tourStatsRow 按难度聚合的统计。
type tourStatsRow struct {
	Difficulty string  `json:"difficulty" gorm:"column:difficulty"`
	NumTours   int64   `json:"numTours" gorm:"column:num_tours"`
	NumRatings int64   `json:"numRatings" gorm:"column:num_ratings"`
	AvgRating  float64 `json:"avgRating" gorm:"column:avg_rating"`
	AvgPrice   float64 `json:"avgPrice" gorm:"column:avg_price"`
	MinPrice   float64 `json:"minPrice" gorm:"column:min_price"`
	MaxPrice   float64 `json:"maxPrice" gorm:"column:max_price"`
}

// handleTourStats 返回按难度聚合的旅行团统计。
//
// 聚合结果进 Redis 缓存，写操作会使缓存失效。
//
// GET /tours/stats
func (s *Server) handleTourStats(c *gin.Context) {
	ctx := c.Request.Context()

	cached := []tourStatsRow{}
	if err := s.statsCache.GetJSON(ctx, tourStatsCacheKey, &cached); err == nil {
		c.JSON(http.StatusOK, gin.H{"stats": cached, "cached": true})
		return
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("stats cache read failed", slog.String("error", err.Error()))
	}

	rows := []tourStatsRow{}
	err := s.db.WithContext(ctx).Model(&model.Tour{}).
		Select("difficulty, COUNT(*) AS num_tours, SUM(ratings_quantity) AS num_ratings, " +
			"AVG(ratings_average) AS avg_rating, AVG(price) AS avg_price, " +
			"MIN(price) AS min_price, MAX(price) AS max_price").
		Where("secret_tour = ?", false).
		Where("ratings_average >= ?", 4.5).
		Group("difficulty").
		Order("avg_price ASC").
		Scan(&rows).Error
	if err != nil {
		s.logger.Error("tour stats failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tour stats failed"})
		return
	}

	if err := s.statsCache.SetJSON(ctx, tourStatsCacheKey, rows); err != nil {
		s.logger.Warn("stats cache write failed", slog.String("error", err.Error()))
	}
	c.JSON(http.StatusOK, gin.H{"stats": rows, "cached": false})
}

func (s *Server) invalidateTourStats(c *gin.Context) {
	if err := s.statsCache.Delete(c.Request.Context(), tourStatsCacheKey); err != nil {
		s.logger.Warn("stats cache invalidate failed", slog.String("error", err.Error()))
	}
}

var slugStripRe = regexp.MustCompile(`[^a-z0-9]+`)

// slugify 把名称转成 URL slug，如 "The Forest Hiker" → "the-forest-hiker"。
func slugify(name string) string {
	slug := slugStripRe.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
