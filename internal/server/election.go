package server

import (
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/elrep/internal/authorization"
	"github.com/smallbiznis/elrep/internal/election/domain"
)

const certificationDateLayout = "2006-01-02"

// CreateElection accepts the election metadata plus the jurisdictions CSV and
// definition JSON as a multipart form. The election and its file rows commit
// before processing, so a bad file still yields an election whose file status
// carries the recorded error.
func (s *Server) CreateElection(c *gin.Context) {
	orgID, err := snowflake.ParseString(c.PostForm("organizationId"))
	if err != nil {
		AbortWithError(c, domain.NewValidationError("invalid organization id %q", c.PostForm("organizationId")))
		return
	}
	if err := s.authorize(c, orgID, authorization.ObjectElection, authorization.ActionElectionCreate); err != nil {
		AbortWithError(c, err)
		return
	}

	pollsOpen, err := time.Parse(time.RFC3339, c.PostForm("pollsOpen"))
	if err != nil {
		AbortWithError(c, domain.NewValidationError("invalid pollsOpen %q", c.PostForm("pollsOpen")))
		return
	}
	pollsClose, err := time.Parse(time.RFC3339, c.PostForm("pollsClose"))
	if err != nil {
		AbortWithError(c, domain.NewValidationError("invalid pollsClose %q", c.PostForm("pollsClose")))
		return
	}
	certificationDate, err := time.Parse(certificationDateLayout, c.PostForm("certificationDate"))
	if err != nil {
		AbortWithError(c, domain.NewValidationError("invalid certificationDate %q", c.PostForm("certificationDate")))
		return
	}

	jurisdictionsName, jurisdictionsData, err := formFile(c, "jurisdictions")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	definitionName, definitionData, err := formFile(c, "definition")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	election, err := s.electionSvc.CreateElection(c.Request.Context(), domain.CreateElectionRequest{
		OrganizationID:    orgID,
		Name:              c.PostForm("electionName"),
		PollsOpenAt:       pollsOpen,
		PollsCloseAt:      pollsClose,
		PollsTimezone:     c.PostForm("pollsTimezone"),
		CertificationDate: certificationDate,
		ActingUser:        actorFrom(c),

		JurisdictionsFileName: jurisdictionsName,
		JurisdictionsFileData: jurisdictionsData,
		DefinitionFileName:    definitionName,
		DefinitionFileData:    definitionData,
	})
	if election == nil && err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"electionId": election.ID.String()})
}

func (s *Server) DeleteElection(c *gin.Context) {
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
	if err := s.authorize(c, election.OrganizationID, authorization.ObjectElection, authorization.ActionElectionDelete); err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.electionSvc.DeleteElection(c.Request.Context(), electionID, actorFrom(c)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) GetDefinitionFile(c *gin.Context) {
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
	if err := s.authorize(c, election.OrganizationID, authorization.ObjectElection, authorization.ActionElectionView); err != nil {
		AbortWithError(c, err)
		return
	}

	view, err := s.electionSvc.GetDefinitionFile(c.Request.Context(), electionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) GetJurisdictionsFile(c *gin.Context) {
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
	if err := s.authorize(c, election.OrganizationID, authorization.ObjectElection, authorization.ActionElectionView); err != nil {
		AbortWithError(c, err)
		return
	}

	file, processing, err := s.electionSvc.GetJurisdictionsFile(c.Request.Context(), electionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"file":       file,
		"processing": processing,
	})
}

func (s *Server) UpdateJurisdictionsFile(c *gin.Context) {
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
	if err := s.authorize(c, election.OrganizationID, authorization.ObjectElection, authorization.ActionElectionUpdate); err != nil {
		AbortWithError(c, err)
		return
	}

	name, data, err := formFile(c, "jurisdictions")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.electionSvc.UpdateJurisdictionsFile(c.Request.Context(), electionID, name, data); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseElectionID(c *gin.Context) (snowflake.ID, error) {
	id, err := snowflake.ParseString(c.Param("electionId"))
	if err != nil {
		return 0, domain.NewValidationError("invalid election id %q", c.Param("electionId"))
	}
	return id, nil
}

func formFile(c *gin.Context, field string) (string, []byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return "", nil, domain.NewValidationError("missing required file %q", field)
	}
	data, err := readFormFile(header)
	if err != nil {
		return "", nil, err
	}
	return header.Filename, data, nil
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
