package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/welfare-savings-ledger/internal/api/handler"
	"github.com/welfare-savings-ledger/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	savingsHandler *handler.SavingsHandler,
	loanHandler *handler.LoanHandler,
	postingHandler *handler.PostingHandler,
	historyHandler *handler.HistoryHandler,
	runHandler *handler.RunHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Member registration and per-member views
		members := v1.Group("/members")
		{
			members.POST("", savingsHandler.Register)
			members.GET("/:member_id/savings", savingsHandler.GetByMember)
			members.GET("/:member_id/loans", loanHandler.ListByMember)
		}

		// Savings account operations
		savings := v1.Group("/savings")
		{
			savings.GET("/:id", savingsHandler.GetByID)
			savings.POST("/:id/deactivate", savingsHandler.Deactivate)
		}

		// Loan lifecycle
		loans := v1.Group("/loans")
		{
			loans.POST("", loanHandler.Apply)
			loans.GET("/:id", loanHandler.GetByID)
			loans.GET("/:id/schedule", loanHandler.Schedule)
			loans.POST("/:id/approve", loanHandler.Approve)
			loans.POST("/:id/reject", loanHandler.Reject)
		}

		// Individual postings
		postings := v1.Group("/postings")
		{
			postings.POST("", postingHandler.Create)
			postings.GET("/:id", postingHandler.GetByID)
		}

		// Per-account ledger views
		accounts := v1.Group("/accounts")
		{
			accounts.GET("/:id/entries", postingHandler.ListByAccount)
			accounts.GET("/:id/balance", historyHandler.BalanceAt)
			accounts.GET("/:id/reconciliation", historyHandler.Reconcile)
			accounts.GET("/:id/export", historyHandler.Export)
		}

		// Group runs and export downloads
		v1.POST("/runs", runHandler.Trigger)
		v1.GET("/exports/:id", historyHandler.Download)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
