package db

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/remotevibe/bridge/internal/models"
)

// UpsertThreadSession writes the thread→session binding. Must be called
// before the first Discord post attributable to sessionID.
func UpsertThreadSession(gdb *gorm.DB, threadID, sessionID string) error {
	row := models.ThreadSession{ThreadID: threadID, SessionID: sessionID, CreatedAt: time.Now()}
	result := gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "thread_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"session_id"}),
	}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("db: upsert thread session: %w", result.Error)
	}
	return nil
}

// GetThreadSession returns the session id bound to threadID, or "" if none.
func GetThreadSession(gdb *gorm.DB, threadID string) (string, error) {
	var row models.ThreadSession
	result := gdb.Where("thread_id = ?", threadID).First(&row)
	if result.Error == gorm.ErrRecordNotFound {
		return "", nil
	}
	if result.Error != nil {
		return "", fmt.Errorf("db: get thread session: %w", result.Error)
	}
	return row.SessionID, nil
}

// DeleteThreadSession removes a binding, used when the Agent no longer
// recognizes the bound session id.
func DeleteThreadSession(gdb *gorm.DB, threadID string) error {
	if err := gdb.Delete(&models.ThreadSession{}, "thread_id = ?", threadID).Error; err != nil {
		return fmt.Errorf("db: delete thread session: %w", err)
	}
	return nil
}

// HasPartMessage reports whether partID has already been posted.
func HasPartMessage(gdb *gorm.DB, partID string) (bool, error) {
	var count int64
	if err := gdb.Model(&models.PartMessage{}).Where("part_id = ?", partID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("db: check part message: %w", err)
	}
	return count > 0, nil
}

// AllPartIDs returns every part id ever recorded, for seeding the
// process-local dedupe cache on startup.
func AllPartIDs(gdb *gorm.DB) ([]string, error) {
	var ids []string
	if err := gdb.Model(&models.PartMessage{}).Pluck("part_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("db: list part ids: %w", err)
	}
	return ids, nil
}

// RecordPartMessage writes the part→message mapping after a successful post.
func RecordPartMessage(gdb *gorm.DB, partID, messageID, threadID string) error {
	row := models.PartMessage{PartID: partID, MessageID: messageID, ThreadID: threadID, CreatedAt: time.Now()}
	result := gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("db: record part message: %w", result.Error)
	}
	return nil
}

// ThreadHasPosts reports whether any part has already been posted into
// threadID, used to decide whether a thread is still "new" for the
// first-transcription thread-rename rule.
func ThreadHasPosts(gdb *gorm.DB, threadID string) (bool, error) {
	var count int64
	if err := gdb.Model(&models.PartMessage{}).Where("thread_id = ?", threadID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("db: thread has posts: %w", err)
	}
	return count > 0, nil
}

// UpsertBotToken stores the bot token for an app.
func UpsertBotToken(gdb *gorm.DB, appID, token string) error {
	row := models.BotToken{AppID: appID, Token: token, CreatedAt: time.Now()}
	result := gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "app_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"token"}),
	}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("db: upsert bot token: %w", result.Error)
	}
	return nil
}

// UpsertBotAPIKey stores provider keys for an app.
func UpsertBotAPIKey(gdb *gorm.DB, appID, primary, fallback string) error {
	row := models.BotAPIKey{AppID: appID, PrimaryKey: primary, FallbackKey: fallback, CreatedAt: time.Now()}
	result := gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "app_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"primary_key", "fallback_key"}),
	}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("db: upsert bot api key: %w", result.Error)
	}
	return nil
}

// UpsertChannelDirectory records a channel's project directory binding.
func UpsertChannelDirectory(gdb *gorm.DB, channelID, directory, channelType string) error {
	row := models.ChannelDirectory{ChannelID: channelID, Directory: directory, ChannelType: channelType, CreatedAt: time.Now()}
	result := gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"directory", "channel_type"}),
	}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("db: upsert channel directory: %w", result.Error)
	}
	return nil
}

// DeleteChannelDirectory removes a stale channel row whose channel id is
// no longer present in Discord.
func DeleteChannelDirectory(gdb *gorm.DB, channelID string) error {
	if err := gdb.Delete(&models.ChannelDirectory{}, "channel_id = ?", channelID).Error; err != nil {
		return fmt.Errorf("db: delete channel directory: %w", err)
	}
	return nil
}

// ChannelsForDirectory returns every channel bound to directory.
func ChannelsForDirectory(gdb *gorm.DB, directory string) ([]models.ChannelDirectory, error) {
	var rows []models.ChannelDirectory
	if err := gdb.Where("directory = ?", directory).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("db: channels for directory: %w", err)
	}
	return rows, nil
}

// DirectoryForChannel returns the project directory bound to channelID, or
// "" if unbound.
func DirectoryForChannel(gdb *gorm.DB, channelID string) (string, error) {
	var row models.ChannelDirectory
	result := gdb.Where("channel_id = ?", channelID).First(&row)
	if result.Error == gorm.ErrRecordNotFound {
		return "", nil
	}
	if result.Error != nil {
		return "", fmt.Errorf("db: directory for channel: %w", result.Error)
	}
	return row.Directory, nil
}
