package api

import (
	"context"
	"time"

	"github.com/matheus3301/inbox/internal/entity"
	"github.com/matheus3301/inbox/internal/remote"
	"github.com/matheus3301/inbox/internal/rpc"
	"github.com/matheus3301/inbox/internal/status"
	intsync "github.com/matheus3301/inbox/internal/sync"
	"google.golang.org/protobuf/types/known/emptypb"
)

// StatusService implements inbox.v1.StatusService.
type StatusService struct {
	profile     string
	apiURL      string
	startedAt   time.Time
	machine     *status.Machine
	store       *entity.Store
	engine      *intsync.Engine
	checkpoints *intsync.Checkpoints
}

// NewStatusService creates a new status service. checkpoints may be nil.
func NewStatusService(profile, apiURL string, machine *status.Machine, s *entity.Store, engine *intsync.Engine, checkpoints *intsync.Checkpoints) *StatusService {
	return &StatusService{
		profile:     profile,
		apiURL:      apiURL,
		startedAt:   time.Now(),
		machine:     machine,
		store:       s,
		engine:      engine,
		checkpoints: checkpoints,
	}
}

func (s *StatusService) GetStatus(_ context.Context, _ *emptypb.Empty) (*rpc.StatusResponse, error) {
	load, loadErr := s.store.Status()
	resp := &rpc.StatusResponse{
		Profile:           s.profile,
		Status:            string(s.machine.Current()),
		UptimeMs:          time.Since(s.startedAt).Milliseconds(),
		ConversationCount: s.store.SelectCount(),
		LoadStatus:        string(load),
		LoadError:         loadErr,
		Watched:           len(s.engine.Watched()),
		APIURL:            s.apiURL,
	}
	if s.checkpoints != nil {
		if last, err := s.checkpoints.Last(intsync.CheckpointConversations); err == nil && !last.IsZero() {
			resp.LastSyncUnixMs = last.UnixMilli()
		}
	}
	return resp, nil
}

func (s *StatusService) Refresh(ctx context.Context, req *rpc.RefreshRequest) (*rpc.RefreshResponse, error) {
	if err := s.engine.RefreshConversations(ctx, remote.Fresh()); err != nil {
		return nil, toStatus(err)
	}
	if req.ConversationUUID != "" {
		if _, err := s.engine.RefreshMessages(ctx, req.ConversationUUID, remote.Fresh()); err != nil {
			return nil, toStatus(err)
		}
	}
	return &rpc.RefreshResponse{ConversationCount: s.store.SelectCount()}, nil
}
