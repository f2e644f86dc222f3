// exposes a Store interface that is passed to the control and resolver layers
package db

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

// Store is the persistence contract. Lookups that miss return sql.ErrNoRows.
type Store interface {
	// users
	GetUserByID(id int) (*model.User, error)

	// screens
	GetScreenByID(id int) (model.Screen, error)
	GetScreenByDeviceID(deviceID string) (model.Screen, error)
	ListScreens(ownerID int) ([]model.Screen, error)
	CreateScreen(name string, location *string, timezone string, createdBy int) (model.Screen, error)
	UpdateScreen(id int, name, location, timezone *string) error
	DeleteScreen(id int) error
	PairScreen(screenID int, deviceID *string) error
	SetScreenGroup(screenID int, groupID *int) error
	SetScreenDefaultPlaylist(screenID int, playlistID *int) error
	ListScreensInGroup(groupID int) ([]model.Screen, error)

	// groups
	CreateScreenGroup(ownerID int, name string, description *string) (model.ScreenGroup, error)
	GetScreenGroupByID(id int) (model.ScreenGroup, error)
	ListScreenGroups(ownerID int) ([]model.ScreenGroup, error)
	DeleteScreenGroup(id int) error
	SetGroupDefaultPlaylist(groupID int, playlistID *int) error

	// overrides
	SetManualOverride(target model.Target, slideID *int) error
	SetUrgentOverride(target model.Target, slideID *int, startsAt, expiresAt *time.Time) error
	ListActiveUrgent(ownerID int, now time.Time) ([]model.UrgentTarget, error)

	// slides
	CreateSlide(name, typ string, body json.RawMessage, createdBy int) (model.Slide, error)
	GetSlideByID(id int) (model.Slide, error)
	ListSlides(ownerID int) ([]model.Slide, error)
	DeleteSlide(id int) error
	SlidesExist(ids []int) (map[int]bool, error)
	ListTargetsUsingSlide(slideID int) ([]model.Target, error)

	// playlists
	CreatePlaylist(name string, description *string, createdBy int) (model.Playlist, error)
	GetPlaylistByID(id int) (model.Playlist, error)
	ListPlaylists(ownerID int) ([]model.Playlist, error)
	DeletePlaylist(id int) error
	AddPlaylistItem(playlistID, slideID, position, duration int, predicate model.Predicate) (model.PlaylistItem, error)
	GetPlaylistItem(itemID int) (model.PlaylistItem, error)
	UpdatePlaylistItem(itemID int, position, duration *int, predicate *model.Predicate) error
	RemovePlaylistItem(itemID int) error
	ListPlaylistItems(playlistID int) ([]model.PlaylistItem, error)
	ReorderPlaylistItems(playlistID int, itemIDs []int) error

	// schedule rules
	CreateScheduleRule(rule model.ScheduleRule) (model.ScheduleRule, error)
	GetScheduleRule(id int) (model.ScheduleRule, error)
	UpdateScheduleRule(rule model.ScheduleRule) (model.ScheduleRule, error)
	DeleteScheduleRule(id int) error
	ListScheduleRules(target model.Target) ([]model.ScheduleRule, error)
	ListTargetsUsingPlaylist(playlistID int) ([]model.Target, error)
}

type pgStore struct {
	db *sqlx.DB
}

// compile-time check that pgStore implements Store
var _ Store = (*pgStore)(nil)

func NewStore(db *sqlx.DB) Store {
	return &pgStore{db: db}
}
