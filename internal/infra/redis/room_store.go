package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"wedding-quiz/internal/app"
)

// RoomStore is a Redis-aware implementation of app.RoomRepository.
// Notes:
//   - Room state stays in the local map; Redis never sees it.
//   - Each code is reserved with SET NX so instances sharing a Redis never hand out the same code.
//   - The reservation expires after ttl; an event is expected to be over well before that.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	rooms  map[string]*app.Room
}

func NewRoomStore(client *redis.Client, ttl time.Duration) *RoomStore {
	return &RoomStore{
		client: client,
		ttl:    ttl,
		rooms:  make(map[string]*app.Room),
	}
}

func (s *RoomStore) Add(room *app.Room) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.rooms[room.Code()]; taken {
		return false
	}
	reserved, err := s.client.SetNX(context.Background(), s.key(room.Code()), "1", s.ttl).Result()
	if err != nil {
		// Redis down: fall back to local uniqueness rather than refusing to create rooms.
		log.Warn().Err(err).Str("code", room.Code()).Msg("room code reservation failed")
	} else if !reserved {
		return false
	}
	s.rooms[room.Code()] = room
	return true
}

func (s *RoomStore) Get(code string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	return room, ok
}

func (s *RoomStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

func (s *RoomStore) key(code string) string {
	return "quiz:room:" + code
}
