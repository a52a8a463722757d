package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/courier/internal/chat"
	"github.com/matheus3301/courier/internal/wire"
)

type sendRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

func (s *server) listPeers(c *gin.Context) {
	peers, err := s.Chat.ListPeers(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	users := make([]wire.User, 0, len(peers.Users))
	for i := range peers.Users {
		users = append(users, wire.FromUser(&peers.Users[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"users":          users,
		"unseenMessages": peers.Unseen,
	})
}

func (s *server) conversation(c *gin.Context) {
	msgs, err := s.Chat.OpenConversation(c.Request.Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messages": wire.FromMessages(msgs)})
}

func (s *server) sendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest(err, "Message cannot be empty"))
		return
	}
	m, err := s.Chat.Send(c.Request.Context(), currentUser(c).ID, c.Param("id"), chat.SendInput(req))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "newMessage": wire.FromMessage(m)})
}

func (s *server) markSeen(c *gin.Context) {
	if _, err := s.Chat.MarkSeen(c.Request.Context(), currentUser(c).ID, c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
