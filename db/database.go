// Package db implements the profile store: an in-memory, JSON-file-backed
// record set guarded by a single RWMutex. Individual operations are atomic,
// but sequences of operations against the same username are last-write-wins;
// there is no per-key serialization.
package db

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"profileserver/config"
	"profileserver/models"
	"profileserver/utils"
)

var (
	// ErrDuplicateUsername indicates a create with a username that is
	// already taken by another profile.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrProfileNotFound indicates no profile matches the given username.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrImmutableUsername indicates an update that attempted to change a
	// profile's username.
	ErrImmutableUsername = errors.New("cannot change username")

	// ErrUsernameTaken indicates a signup with a username that is already
	// registered to another account.
	ErrUsernameTaken = errors.New("username already taken")
)

// Database holds all application data and manages concurrent access.
// The embedded models.Database carries the serialized collections; the
// fields here drive the debounced save machinery.
type Database struct {
	models.Database
	config      *config.Config
	saveTimer   *time.Timer // Timer for debounced saving
	savePending bool        // Flag to indicate if a save is queued
	saveMutex   sync.Mutex  // Mutex specifically for the save timer logic
}

// NewDatabase creates and initializes a new Database instance, loading any
// existing data from the configured file.
func NewDatabase(cfg *config.Config) (*Database, error) {
	db := &Database{
		Database: models.Database{
			Profiles:       make(map[string]models.Profile),
			Users:          make(map[string]models.User),
			CredentialLogs: make([]models.CredentialLog, 0),
		},
		config: cfg,
	}

	log.Printf("INFO: Initializing database with file: %s", cfg.DbFilePath)
	if err := db.Load(); err != nil {
		// A missing file is fine (fresh start); a parse error is critical.
		if !os.IsNotExist(err) {
			log.Printf("ERROR: Database Load failed with critical error: %v", err)
			return nil, err
		}
	}

	return db, nil
}

// Load reads the database state from the JSON file specified in the
// configuration. If the file doesn't exist, it initializes an empty state.
// If the file exists but cannot be parsed, it returns the parse error.
func (db *Database) Load() error {
	db.Database.Mu.Lock()
	defer db.Database.Mu.Unlock()

	fileData, err := os.ReadFile(db.config.DbFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("INFO: Database file '%s' not found. Initializing empty database.", db.config.DbFilePath)
			db.ensureCollections()
			return nil
		}
		log.Printf("ERROR: Failed to read database file '%s': %v. Proceeding with empty state.", db.config.DbFilePath, err)
		db.ensureCollections()
		return nil
	}

	if err := json.Unmarshal(fileData, &db.Database); err != nil {
		log.Printf("CRITICAL: Failed to parse JSON data from database file '%s': %v", db.config.DbFilePath, err)
		db.ensureCollections()
		return err
	}
	db.ensureCollections()

	log.Printf("INFO: Successfully loaded database from %s. Profiles: %d, Users: %d, CredentialLogs: %d",
		db.config.DbFilePath, len(db.Database.Profiles), len(db.Database.Users), len(db.Database.CredentialLogs))

	return nil
}

// ensureCollections guards against nil maps/slices after a partial load.
// Callers must hold the write lock.
func (db *Database) ensureCollections() {
	if db.Database.Profiles == nil {
		db.Database.Profiles = make(map[string]models.Profile)
	}
	if db.Database.Users == nil {
		db.Database.Users = make(map[string]models.User)
	}
	if db.Database.CredentialLogs == nil {
		db.Database.CredentialLogs = make([]models.CredentialLog, 0)
	}
}

// persist saves the current database state to the JSON file. This is the
// actual file writing logic, called by the debounce machinery.
func (db *Database) persist() error {
	db.Database.Mu.RLock()
	jsonData, err := json.MarshalIndent(&db.Database, "", "  ")
	db.Database.Mu.RUnlock()
	if err != nil {
		log.Printf("ERROR: Failed to marshal database state to JSON: %v", err)
		return err
	}

	// Write to a temporary file, optionally rotate a backup, then rename
	// into place so a crash mid-write cannot corrupt the database file.
	tempFilePath := db.config.DbFilePath + ".tmp"
	backupFilePath := db.config.DbFilePath + ".bak"

	if err := os.WriteFile(tempFilePath, jsonData, 0644); err != nil {
		log.Printf("ERROR: Failed to write to temporary database file '%s': %v", tempFilePath, err)
		return err
	}

	if db.config.EnableBackup {
		if _, err := os.Stat(db.config.DbFilePath); err == nil {
			if err := os.Rename(db.config.DbFilePath, backupFilePath); err != nil {
				log.Printf("WARN: Failed to rename '%s' to '%s' for backup: %v. Proceeding with save.", db.config.DbFilePath, backupFilePath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Printf("WARN: Error checking status of original DB file '%s' before backup: %v", db.config.DbFilePath, err)
		}
	}

	if err := os.Rename(tempFilePath, db.config.DbFilePath); err != nil {
		log.Printf("ERROR: Failed to atomically rename temporary file '%s' to '%s': %v", tempFilePath, db.config.DbFilePath, err)
		_ = os.Remove(tempFilePath)
		return err
	}

	log.Printf("INFO: Successfully saved database state to %s", db.config.DbFilePath)
	return nil
}

// requestSave is called after every write operation to trigger a debounced save.
func (db *Database) requestSave() {
	db.saveMutex.Lock()
	defer db.saveMutex.Unlock()

	// Instant save if interval is zero or negative
	if db.config.SaveInterval <= 0 {
		go func() {
			if err := db.persist(); err != nil {
				log.Printf("ERROR: Immediate persist failed: %v", err)
			}
		}()
		return
	}

	if db.saveTimer != nil {
		db.saveTimer.Stop()
	}
	db.savePending = true

	db.saveTimer = time.AfterFunc(db.config.SaveInterval, func() {
		db.saveMutex.Lock()
		if !db.savePending {
			db.saveMutex.Unlock()
			return
		}
		db.savePending = false
		db.saveMutex.Unlock()

		if err := db.persist(); err != nil {
			log.Printf("ERROR: Debounced persist failed: %v", err)
		}
	})
}

// Close ensures any pending save operation is completed before shutdown.
func (db *Database) Close() error {
	var needsFinalPersist bool

	db.saveMutex.Lock()
	if db.saveTimer != nil {
		db.saveTimer.Stop()
		db.saveTimer = nil
	}
	if db.savePending {
		needsFinalPersist = true
		db.savePending = false
	}
	db.saveMutex.Unlock()

	if needsFinalPersist {
		log.Printf("INFO: Performing final persist operation on close...")
		if err := db.persist(); err != nil {
			log.Printf("ERROR: Final persist operation failed during close: %v", err)
			return err
		}
	}

	return nil
}

// --- Profiles ---

// CreateProfile adds a new profile to the database, enforcing global
// username uniqueness. The server-owned fields (ID, ViewCount) are assigned
// here regardless of what the caller set.
func (db *Database) CreateProfile(profile models.Profile) (models.Profile, error) {
	db.Database.Mu.Lock()
	defer db.Database.Mu.Unlock()

	for _, existing := range db.Database.Profiles {
		if existing.Username == profile.Username {
			return models.Profile{}, ErrDuplicateUsername
		}
	}

	profile.ID = utils.GenerateDashlessUUID()
	profile.ViewCount = 0

	db.Database.Profiles[profile.ID] = profile
	log.Printf("INFO: Created Profile ID: %s, Username: %s", profile.ID, profile.Username)

	db.requestSave()

	return profile, nil
}

// GetProfileByID retrieves a profile by its ID.
func (db *Database) GetProfileByID(id string) (models.Profile, bool) {
	db.Database.Mu.RLock()
	defer db.Database.Mu.RUnlock()

	profile, found := db.Database.Profiles[id]
	return profile, found
}

// GetProfileByUsername retrieves a profile by its username (exact match).
func (db *Database) GetProfileByUsername(username string) (models.Profile, bool) {
	db.Database.Mu.RLock()
	defer db.Database.Mu.RUnlock()

	for _, profile := range db.Database.Profiles {
		if profile.Username == username {
			return profile, true
		}
	}
	return models.Profile{}, false
}

// GetAllProfiles retrieves all profiles in unspecified order.
func (db *Database) GetAllProfiles() []models.Profile {
	db.Database.Mu.RLock()
	defer db.Database.Mu.RUnlock()

	profiles := make([]models.Profile, 0, len(db.Database.Profiles))
	for _, profile := range db.Database.Profiles {
		profiles = append(profiles, profile)
	}
	return profiles
}

// UpdateProfile applies a partial update to the profile with the given
// username. The mutate callback runs under the store lock and receives a
// copy of the current record; only the fields it touches change. Attempts
// to alter the immutable or server-owned fields (username, id, viewCount,
// userId) fail with ErrImmutableUsername or are discarded.
func (db *Database) UpdateProfile(username string, mutate func(profile *models.Profile)) (models.Profile, error) {
	db.Database.Mu.Lock()
	defer db.Database.Mu.Unlock()

	var existing models.Profile
	found := false
	for _, profile := range db.Database.Profiles {
		if profile.Username == username {
			existing = profile
			found = true
			break
		}
	}
	if !found {
		return models.Profile{}, ErrProfileNotFound
	}

	updated := existing
	mutate(&updated)

	if updated.Username != existing.Username {
		return models.Profile{}, ErrImmutableUsername
	}
	// Server-owned fields are never writable through update.
	updated.ID = existing.ID
	updated.ViewCount = existing.ViewCount
	updated.UserID = existing.UserID

	db.Database.Profiles[updated.ID] = updated
	log.Printf("INFO: Updated Profile Username: %s (ID: %s)", username, updated.ID)

	db.requestSave()

	return updated, nil
}

// IncrementViewCount adds 1 to the view counter of the profile with the
// given username, atomically with respect to this single operation.
func (db *Database) IncrementViewCount(username string) (models.Profile, error) {
	db.Database.Mu.Lock()
	defer db.Database.Mu.Unlock()

	for id, profile := range db.Database.Profiles {
		if profile.Username == username {
			profile.ViewCount++
			db.Database.Profiles[id] = profile

			db.requestSave()
			return profile, nil
		}
	}
	return models.Profile{}, ErrProfileNotFound
}

// --- Users ---

// CreateUser adds a new account, enforcing username uniqueness.
func (db *Database) CreateUser(user models.User) (models.User, error) {
	db.Database.Mu.Lock()
	defer db.Database.Mu.Unlock()

	for _, existing := range db.Database.Users {
		if existing.Username == user.Username {
			return models.User{}, ErrUsernameTaken
		}
	}

	if user.ID == "" {
		user.ID = utils.GenerateDashlessUUID()
	}
	if user.CreationDate.IsZero() {
		user.CreationDate = time.Now().UTC()
	}

	db.Database.Users[user.ID] = user
	log.Printf("INFO: Created User ID: %s, Username: %s", user.ID, user.Username)

	db.requestSave()

	return user, nil
}

// GetUserByID retrieves an account by its ID.
func (db *Database) GetUserByID(id string) (models.User, bool) {
	db.Database.Mu.RLock()
	defer db.Database.Mu.RUnlock()

	user, found := db.Database.Users[id]
	return user, found
}

// GetUserByUsername retrieves an account by username (exact match).
func (db *Database) GetUserByUsername(username string) (models.User, bool) {
	db.Database.Mu.RLock()
	defer db.Database.Mu.RUnlock()

	for _, user := range db.Database.Users {
		if user.Username == username {
			return user, true
		}
	}
	return models.User{}, false
}

// --- Credential Logs ---

// CreateCredentialLog appends a new immutable record with a server-generated
// timestamp. There is deliberately no check that profileUsername names an
// existing profile.
func (db *Database) CreateCredentialLog(entry models.CredentialLog) models.CredentialLog {
	db.Database.Mu.Lock()
	defer db.Database.Mu.Unlock()

	entry.ID = utils.GenerateDashlessUUID()
	entry.Timestamp = time.Now().UTC().Format(time.RFC3339)

	db.Database.CredentialLogs = append(db.Database.CredentialLogs, entry)
	log.Printf("INFO: Recorded credential log for profile '%s' (ID: %s)", entry.ProfileUsername, entry.ID)

	db.requestSave()

	return entry
}

// GetAllCredentialLogs returns all credential logs in submission order.
func (db *Database) GetAllCredentialLogs() []models.CredentialLog {
	db.Database.Mu.RLock()
	defer db.Database.Mu.RUnlock()

	logs := make([]models.CredentialLog, len(db.Database.CredentialLogs))
	copy(logs, db.Database.CredentialLogs)
	return logs
}

// ProfileCount reports the number of stored profiles.
func (db *Database) ProfileCount() int {
	db.Database.Mu.RLock()
	defer db.Database.Mu.RUnlock()
	return len(db.Database.Profiles)
}
