package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/courier/internal/apperr"
	"github.com/matheus3301/courier/internal/auth"
	"github.com/matheus3301/courier/internal/media"
	"github.com/matheus3301/courier/internal/wire"
)

type signupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Bio      string `json:"bio"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	FullName   string `json:"fullName" form:"fullName"`
	Bio        string `json:"bio" form:"bio"`
	ProfilePic string `json:"profilePic"`
}

func (s *server) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, apperr.Wrap(apperr.Validation, "Missing Details", err))
		return
	}
	sess, err := s.Auth.Signup(c.Request.Context(), auth.SignupInput(req))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"userData": wire.FromUser(sess.User),
		"token":    sess.Token,
		"message":  "Account created successfully",
	})
}

func (s *server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, apperr.Wrap(apperr.Validation, "Missing Details", err))
		return
	}
	sess, err := s.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"userData": wire.FromUser(sess.User),
		"token":    sess.Token,
		"message":  "Login successful",
	})
}

func (s *server) check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "user": wire.FromUser(currentUser(c))})
}

// updateProfile accepts multipart with an optional profilePic file, or JSON
// with profilePic as a data URI.
func (s *server) updateProfile(c *gin.Context) {
	var (
		req profileRequest
		pic []byte
		err error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&req); err != nil {
			s.fail(c, badRequest(err, "Invalid profile"))
			return
		}
		pic, err = s.readUpload(c, "profilePic")
	} else {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.fail(c, badRequest(err, "Invalid profile"))
			return
		}
		if req.ProfilePic != "" {
			pic, err = media.DecodeDataURI(req.ProfilePic)
			if err != nil {
				err = apperr.Wrap(apperr.Validation, "Invalid image", err)
			}
		}
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	u, err := s.Auth.UpdateProfile(c.Request.Context(), currentUser(c).ID, req.FullName, req.Bio, pic)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": wire.FromUser(u)})
}

// readUpload returns the named multipart file, or nil if it is absent.
func (s *server) readUpload(c *gin.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, badRequest(err, "Invalid upload")
	}
	if s.MaxUpload > 0 && fh.Size > s.MaxUpload {
		return nil, apperr.New(apperr.Validation, "Image too large")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}
