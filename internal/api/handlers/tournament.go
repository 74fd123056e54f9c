package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/playarcana/backend/internal/economy"
	"github.com/playarcana/backend/internal/rating"
	"github.com/playarcana/backend/internal/tournament"
)

// RegisterForTournament registers the authenticated player and debits the entry fee
func RegisterForTournament(ts *tournament.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		pid, username, ok := playerFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		tid, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tournament id"})
			return
		}

		p, err := ts.Register(context.Background(), tid, pid, username)
		if err != nil {
			switch {
			case errors.Is(err, tournament.ErrTournamentNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "tournament not found"})
			case errors.Is(err, tournament.ErrRegistrationClosed):
				c.JSON(http.StatusConflict, gin.H{"error": "registration is closed"})
			case errors.Is(err, tournament.ErrTournamentFull):
				c.JSON(http.StatusConflict, gin.H{"error": "tournament is full"})
			case errors.Is(err, tournament.ErrAlreadyRegistered):
				c.JSON(http.StatusConflict, gin.H{"error": "already registered"})
			case errors.Is(err, economy.ErrInsufficientFunds):
				c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient balance for entry fee"})
			case errors.Is(err, rating.ErrNoActiveDeck):
				c.JSON(http.StatusBadRequest, gin.H{"error": "no active deck selected"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"registered":  true,
			"seed_rating": p.SeedRating,
			"status":      p.Status,
		})
	}
}

// TournamentCheckIn confirms the authenticated player's attendance
func TournamentCheckIn(ts *tournament.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		pid, _, ok := playerFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		tid, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tournament id"})
			return
		}

		if err := ts.CheckIn(context.Background(), tid, pid); err != nil {
			switch {
			case errors.Is(err, tournament.ErrTournamentNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "tournament not found"})
			case errors.Is(err, tournament.ErrCheckInClosed):
				c.JSON(http.StatusConflict, gin.H{"error": "check-in window is closed"})
			case errors.Is(err, tournament.ErrNotRegistered):
				c.JSON(http.StatusConflict, gin.H{"error": "not registered for this tournament"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "check-in failed"})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{"checked_in": true})
	}
}

// GetActiveTournaments lists tournaments open for registration, in check-in or running
func GetActiveTournaments(ts *tournament.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := ts.ListActive(context.Background())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tournaments"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tournaments": list})
	}
}

// GetTournamentDetails returns one tournament with its participants
func GetTournamentDetails(ts *tournament.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tid, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tournament id"})
			return
		}

		t, participants, err := ts.Details(context.Background(), tid)
		if err != nil {
			if errors.Is(err, tournament.ErrTournamentNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "tournament not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tournament"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"tournament": t, "participants": participants})
	}
}

// GetTournamentBracket returns the bracket grouped by round
func GetTournamentBracket(ts *tournament.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tid, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tournament id"})
			return
		}

		rounds, err := ts.Bracket(context.Background(), tid)
		if err != nil {
			if errors.Is(err, tournament.ErrTournamentNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "tournament not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load bracket"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"rounds": rounds})
	}
}

// GetMyTournamentHistory returns the authenticated player's past tournament results
func GetMyTournamentHistory(ts *tournament.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		pid, _, ok := playerFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		history, err := ts.History(context.Background(), pid)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"history": history})
	}
}
