// Package playstate persists the player's progress between runs: which hunts
// they joined and as whom, their user-hunt id, and the last hunt they opened.
//
// Values live in the local_storage key/value table:
//
//	userHuntId          most recent user-hunt id, decimal
//	joined:hunt:<ref>   Membership as JSON, one entry per id and per slug
//	lastHuntId          numeric id of the last hunt opened
//	lastHuntRef         id or slug of the last hunt opened
package playstate

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/sidequest/internal/client/models"
	"github.com/dmitrijs2005/sidequest/internal/client/repositories/localstore"
	"github.com/dmitrijs2005/sidequest/internal/dbx"
)

const (
	KeyUserHuntID  = "userHuntId"
	KeyLastHuntID  = "lastHuntId"
	KeyLastHuntRef = "lastHuntRef"
	JoinedPrefix   = "joined:hunt:"
)

func joinedKey(ref string) string {
	return JoinedPrefix + ref
}

// Store reads and writes play state. Multi-key updates run in one
// transaction when the store was built over a *sql.DB.
type Store struct {
	db   *sql.DB
	repo localstore.Repository
	now  func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, repo: localstore.NewSQLiteRepository(db), now: time.Now}
}

// NewWithRepository builds a Store over any Repository; writes are then
// applied one key at a time.
func NewWithRepository(repo localstore.Repository) *Store {
	return &Store{repo: repo, now: time.Now}
}

func (s *Store) update(ctx context.Context, fn func(ctx context.Context, repo localstore.Repository) error) error {
	if s.db == nil {
		return fn(ctx, s.repo)
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, localstore.NewSQLiteRepository(tx))
	})
}

// UserHuntID returns the most recently stored user-hunt id.
func (s *Store) UserHuntID(ctx context.Context) (*int64, error) {
	v, err := s.repo.Get(ctx, KeyUserHuntID)
	if err != nil || len(v) == 0 {
		return nil, err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
	if err != nil {
		// a garbage value reads as absent
		return nil, nil
	}
	return &id, nil
}

// Membership returns the stored membership for ref. A hunt never joined
// reads as NotJoined.
func (s *Store) Membership(ctx context.Context, ref string) (models.Membership, error) {
	m := models.Membership{HuntRef: ref, Status: models.NotJoined}

	v, err := s.repo.Get(ctx, joinedKey(ref))
	if err != nil {
		return m, err
	}
	if len(v) == 0 {
		return m, nil
	}

	var stored models.Membership
	if err := json.Unmarshal(v, &stored); err != nil || stored.Status == "" {
		// flag written as a bare "1"/"true"
		switch strings.TrimSpace(string(v)) {
		case "1", "true":
			m.Status = models.JoinedAsGuest
		}
		return m, nil
	}
	stored.HuntRef = ref
	return stored, nil
}

// UserHuntFor returns the user-hunt id stored with ref's own membership.
// Another hunt's id is never used. The global userHuntId is only consulted
// when no per-hunt membership has been recorded at all, as left behind by
// clients that kept just that key.
func (s *Store) UserHuntFor(ctx context.Context, ref string) (*int64, error) {
	m, err := s.Membership(ctx, ref)
	if err != nil {
		return nil, err
	}
	if m.Joined() {
		return m.UserHuntRef(), nil
	}

	kv, err := s.repo.List(ctx, JoinedPrefix)
	if err != nil {
		return nil, err
	}
	if len(kv) > 0 {
		return nil, nil
	}
	return s.UserHuntID(ctx)
}

// Join describes a successful join to record.
type Join struct {
	// Refs are every reference the hunt is known by (id and slug).
	Refs       []string
	Status     models.MembershipStatus
	UserHuntID *int64
}

// RecordJoin stores the membership under every ref, the user-hunt id when
// one came back, and makes the hunt the last one opened.
func (s *Store) RecordJoin(ctx context.Context, j Join) error {
	refs := compact(j.Refs)
	if len(refs) == 0 {
		return fmt.Errorf("record join: no hunt reference")
	}
	if j.Status == "" || j.Status == models.NotJoined {
		j.Status = models.JoinedAsGuest
	}

	m := models.Membership{Status: j.Status, JoinedAt: s.now().UTC()}
	if j.UserHuntID != nil {
		m.UserHuntID = *j.UserHuntID
	}

	return s.update(ctx, func(ctx context.Context, repo localstore.Repository) error {
		for _, ref := range refs {
			m.HuntRef = ref
			b, err := json.Marshal(m)
			if err != nil {
				return err
			}
			if err := repo.Set(ctx, joinedKey(ref), b); err != nil {
				return err
			}
		}
		if j.UserHuntID != nil {
			if err := repo.Set(ctx, KeyUserHuntID, []byte(strconv.FormatInt(*j.UserHuntID, 10))); err != nil {
				return err
			}
		}
		return setLastHunt(ctx, repo, refs)
	})
}

// Forget drops the membership for every given ref.
func (s *Store) Forget(ctx context.Context, refs ...string) error {
	return s.update(ctx, func(ctx context.Context, repo localstore.Repository) error {
		for _, ref := range compact(refs) {
			if err := repo.Delete(ctx, joinedKey(ref)); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetLastHunt remembers the hunt last opened. refs are the id and/or slug.
func (s *Store) SetLastHunt(ctx context.Context, refs ...string) error {
	refs = compact(refs)
	if len(refs) == 0 {
		return nil
	}
	return s.update(ctx, func(ctx context.Context, repo localstore.Repository) error {
		return setLastHunt(ctx, repo, refs)
	})
}

// LastHunt returns the last hunt opened: its numeric id (0 if unknown) and
// the preferred ref.
func (s *Store) LastHunt(ctx context.Context) (int64, string, error) {
	idv, err := s.repo.Get(ctx, KeyLastHuntID)
	if err != nil {
		return 0, "", err
	}
	refv, err := s.repo.Get(ctx, KeyLastHuntRef)
	if err != nil {
		return 0, "", err
	}
	id, _ := strconv.ParseInt(string(idv), 10, 64)
	ref := string(refv)
	if ref == "" && id != 0 {
		ref = strconv.FormatInt(id, 10)
	}
	return id, ref, nil
}

// Memberships lists every stored membership keyed by hunt ref.
func (s *Store) Memberships(ctx context.Context) (map[string]models.Membership, error) {
	kv, err := s.repo.List(ctx, JoinedPrefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Membership, len(kv))
	for k := range kv {
		ref := strings.TrimPrefix(k, JoinedPrefix)
		m, err := s.Membership(ctx, ref)
		if err != nil {
			return nil, err
		}
		out[ref] = m
	}
	return out, nil
}

// Reset wipes all play state.
func (s *Store) Reset(ctx context.Context) error {
	return s.repo.Clear(ctx)
}

func setLastHunt(ctx context.Context, repo localstore.Repository, refs []string) error {
	ref := refs[0]
	for _, r := range refs {
		if _, err := strconv.ParseInt(r, 10, 64); err == nil {
			if err := repo.Set(ctx, KeyLastHuntID, []byte(r)); err != nil {
				return err
			}
		} else {
			// prefer the slug for links
			ref = r
		}
	}
	return repo.Set(ctx, KeyLastHuntRef, []byte(ref))
}

func compact(refs []string) []string {
	out := make([]string, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, r := range refs {
		r = strings.TrimSpace(r)
		if r == "" || r == "0" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
