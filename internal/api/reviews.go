package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"tourhive/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// createReviewRequest 创建评论的请求参数。
type createReviewRequest struct {
	Rating int    `json:"rating" binding:"required,min=1,max=5"`
	Review string `json:"review" binding:"required"`
}

type reviewResponse struct {
	ID        uint      `json:"id"`
	TourID    uint      `json:"tourId"`
	UserID    uint      `json:"userId"`
	Rating    int       `json:"rating"`
	Review    string    `json:"review"`
	CreatedAt time.Time `json:"createdAt"`
}

func toReviewResponse(r *model.Review) reviewResponse {
	return reviewResponse{
		ID:        r.ID,
		TourID:    r.TourID,
		UserID:    r.UserID,
		Rating:    r.Rating,
		Review:    r.Review,
		CreatedAt: r.CreatedAt,
	}
}

// handleListReviews 返回指定旅行团的评论列表。
//
// GET /tours/:id/reviews
func (s *Server) handleListReviews(c *gin.Context) {
	tourID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tour id"})
		return
	}

	reviews := []model.Review{}
	if err := s.db.WithContext(c.Request.Context()).
		Where("tour_id = ?", uint(tourID)).
		Order("created_at DESC").
		Find(&reviews).Error; err != nil {
		s.logger.Error("list reviews failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list reviews failed"})
		return
	}

	out := make([]reviewResponse, 0, len(reviews))
	for i := range reviews {
		out = append(out, toReviewResponse(&reviews[i]))
	}
	c.JSON(http.StatusOK, gin.H{"results": len(out), "reviews": out})
}

// handleCreateReview 创建评论并重算旅行团的评分聚合。
//
// 插入评论和更新 ratings_average / ratings_quantity 在同一事务里，
// 聚合值不能和评论表脱节。
//
// POST /tours/:id/reviews
func (s *Server) handleCreateReview(c *gin.Context) {
	tourID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tour id"})
		return
	}
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "you are not logged in, please log in to get access"})
		return
	}

	var req createReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	review := model.Review{
		TourID: uint(tourID),
		UserID: userID,
		Rating: req.Rating,
		Review: req.Review,
	}

	err = s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var tour model.Tour
		if err := tx.First(&tour, uint(tourID)).Error; err != nil {
			return err
		}

		// 一人一团只能评一次
		var existing int64
		if err := tx.Model(&model.Review{}).
			Where("tour_id = ? AND user_id = ?", uint(tourID), userID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return errDuplicateReview
		}

		if err := tx.Create(&review).Error; err != nil {
			return err
		}

		// 重算聚合
		var agg struct {
			Count int64
			Avg   float64
		}
		if err := tx.Model(&model.Review{}).
			Select("COUNT(*) AS count, AVG(rating) AS avg").
			Where("tour_id = ?", uint(tourID)).
			Scan(&agg).Error; err != nil {
			return err
		}
		return tx.Model(&model.Tour{}).Where("id = ?", uint(tourID)).
			Updates(map[string]interface{}{
				"ratings_quantity": agg.Count,
				"ratings_average":  agg.Avg,
			}).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "no tour found with that id"})
		case errors.Is(err, errDuplicateReview):
			c.JSON(http.StatusBadRequest, gin.H{"error": "you have already reviewed this tour"})
		default:
			s.logger.Error("create review failed", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create review failed"})
		}
		return
	}

	s.invalidateTourStats(c)
	c.JSON(http.StatusCreated, gin.H{"review": toReviewResponse(&review)})
}

var errDuplicateReview = errors.New("duplicate review")
