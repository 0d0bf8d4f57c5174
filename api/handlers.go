package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/luca-patrignani/pow-ledger/ledger"
)

type chainResponse struct {
	Length     int             `json:"length"`
	Difficulty int             `json:"difficulty"`
	Valid      bool            `json:"valid"`
	Blocks     []*ledger.Block `json:"blocks"`
}

type mineRequest struct {
	Miner string `json:"miner" binding:"required"`
}

func (s *Server) getChainHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.RLock()
		defer s.mu.RUnlock()

		c.JSON(http.StatusOK, chainResponse{
			Length:     s.chain.Len(),
			Difficulty: s.chain.Difficulty(),
			Valid:      s.chain.IsValid(),
			Blocks:     s.chain.Blocks(),
		})
	}
}

func (s *Server) getValidHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.RLock()
		err := s.chain.Verify()
		s.mu.RUnlock()

		if err != nil {
			c.JSON(http.StatusOK, gin.H{"valid": false, "reason": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"valid": true})
	}
}

func (s *Server) getBlockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.RLock()
		defer s.mu.RUnlock()

		param := c.Param("index")
		if param == "latest" {
			c.JSON(http.StatusOK, s.chain.GetLatest())
			return
		}
		index, err := strconv.Atoi(param)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"reason": "invalid block index"})
			return
		}
		block, err := s.chain.GetByIndex(index)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"reason": err.Error()})
			return
		}
		c.JSON(http.StatusOK, block)
	}
}

func (s *Server) getPendingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.RLock()
		defer s.mu.RUnlock()

		c.JSON(http.StatusOK, s.chain.Pending())
	}
}

func (s *Server) postTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var tx ledger.Transaction
		if err := c.ShouldBindJSON(&tx); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"reason": err.Error()})
			return
		}

		s.mu.Lock()
		s.chain.QueueTransaction(tx.Sender, tx.Recipient, tx.Amount)
		pending := len(s.chain.Pending())
		s.mu.Unlock()

		s.logger.Info("transaction queued", "sender", tx.Sender, "recipient", tx.Recipient, "amount", tx.Amount)
		c.JSON(http.StatusCreated, gin.H{"pending": pending})
	}
}

// postMineHandler mines under the request context, so a client that goes
// away stops the search.
func (s *Server) postMineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req mineRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"reason": "miner address required"})
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		if err := s.chain.MinePendingContext(c.Request.Context(), req.Miner); err != nil {
			s.logger.Warn("mining aborted", "miner", req.Miner, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"reason": err.Error()})
			return
		}
		block := s.chain.GetLatest()
		s.logger.Info("block mined", "index", block.Index(), "hash", block.Hash(), "miner", req.Miner)
		c.JSON(http.StatusCreated, block)
	}
}

func (s *Server) getBalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		address := c.Param("address")

		s.mu.RLock()
		balance := s.chain.Balance(address)
		s.mu.RUnlock()

		c.JSON(http.StatusOK, gin.H{"address": address, "balance": balance})
	}
}
