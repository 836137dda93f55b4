package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/elrep/internal/authorization"
	"github.com/smallbiznis/elrep/internal/election/domain"
	"github.com/smallbiznis/elrep/internal/results"
)

func (s *Server) SubmitResults(c *gin.Context) {
	electionID, err := parseElectionID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	jurisdictionID, err := parseJurisdictionID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	election, err := s.electionSvc.GetElection(c.Request.Context(), electionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.authorize(c, election.OrganizationID, authorization.ObjectResults, authorization.ActionResultsRecord); err != nil {
		AbortWithError(c, err)
		return
	}

	var req results.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.resultsSvc.Submit(c.Request.Context(), electionID, jurisdictionID, actorFrom(c), req); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) GetResultsStatus(c *gin.Context) {
	electionID, err := parseElectionID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	jurisdictionID, err := parseJurisdictionID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	election, err := s.electionSvc.GetElection(c.Request.Context(), electionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.authorize(c, election.OrganizationID, authorization.ObjectResults, authorization.ActionResultsView); err != nil {
		AbortWithError(c, err)
		return
	}

	view, err := s.resultsSvc.Status(c.Request.Context(), electionID, jurisdictionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) GetElectionData(c *gin.Context) {
	electionID, err := parseElectionID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	election, err := s.electionSvc.GetElection(c.Request.Context(), electionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.authorize(c, election.OrganizationID, authorization.ObjectResults, authorization.ActionResultsView); err != nil {
		AbortWithError(c, err)
		return
	}

	groups, err := s.resultsSvc.ElectionData(c.Request.Context(), electionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if groups == nil {
		groups = []results.ResultGroup{}
	}
	c.JSON(http.StatusOK, groups)
}

func parseJurisdictionID(c *gin.Context) (snowflake.ID, error) {
	id, err := snowflake.ParseString(c.Param("jurisdictionId"))
	if err != nil {
		return 0, domain.NewValidationError("invalid jurisdiction id %q", c.Param("jurisdictionId"))
	}
	return id, nil
}
