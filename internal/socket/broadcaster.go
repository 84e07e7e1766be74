package socket

import (
	"github.com/Marga-Ghale/aurora-pm-backend/internal/models"
)

// Broadcaster turns domain mutations into hub messages. By default every event
// goes to all clients with the project room carried in the envelope; when
// scoped, task, activity and comment events only reach the project room.
type Broadcaster struct {
	hub    *Hub
	scoped bool
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hub *Hub, scoped bool) *Broadcaster {
	return &Broadcaster{hub: hub, scoped: scoped}
}

func (b *Broadcaster) emit(msgType MessageType, projectID string, payload interface{}) {
	room := ""
	if projectID != "" {
		room = ProjectRoom(projectID)
	}
	if b.scoped && room != "" {
		b.hub.SendToRoom(room, msgType, payload, "")
		return
	}
	b.hub.Broadcast(msgType, payload, room)
}

// ============================================
// Project Broadcasting
// ============================================

// Project lifecycle events stay global so project lists on every client update.

func (b *Broadcaster) BroadcastProjectCreated(project *models.ProjectResponse) {
	b.hub.Broadcast(MessageProjectCreated, project, ProjectRoom(project.ID))
}

func (b *Broadcaster) BroadcastProjectUpdated(project *models.ProjectResponse) {
	b.hub.Broadcast(MessageProjectUpdated, project, ProjectRoom(project.ID))
}

func (b *Broadcaster) BroadcastProjectDeleted(projectID string) {
	b.hub.Broadcast(MessageProjectDeleted, map[string]string{"id": projectID}, ProjectRoom(projectID))
}

// ============================================
// Task Broadcasting
// ============================================

func (b *Broadcaster) BroadcastTaskCreated(task *models.TaskResponse) {
	b.emit(MessageTaskCreated, task.ProjectID, task)
}

func (b *Broadcaster) BroadcastTaskUpdated(task *models.TaskResponse) {
	b.emit(MessageTaskUpdated, task.ProjectID, task)
}

func (b *Broadcaster) BroadcastTaskDeleted(projectID, taskID string) {
	b.emit(MessageTaskDeleted, projectID, models.TaskDeleted{ID: taskID, ProjectID: projectID})
}

// ============================================
// Activity Broadcasting
// ============================================

func (b *Broadcaster) BroadcastActivityAdded(activity *models.ActivityResponse) {
	projectID := ""
	if activity.ProjectID != nil {
		projectID = *activity.ProjectID
	}
	b.emit(MessageActivityAdded, projectID, activity)
}

func (b *Broadcaster) BroadcastCommentAdded(comment *models.CommentResponse) {
	b.emit(MessageCommentAdded, comment.ProjectID, comment)
}

// ConnectedClients is used by health checks and scheduled stats.
func (b *Broadcaster) ConnectedClients() int {
	return b.hub.GetConnectedClientsCount()
}
