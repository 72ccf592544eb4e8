// Package seed populates the dev gateway's database with plausible campus
// data for manual testing and demos.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/trailtalk/trailtalk/internal/logger"
	"github.com/trailtalk/trailtalk/internal/models"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db}
}

// SeedDev seeds the development database with realistic data.
func (s *Seeder) SeedDev() error {
	log := func(msg string) {
		logger.Log.Info(msg)
	}

	log("Creating profiles...")
	profiles, err := s.seedProfiles(50)
	if err != nil {
		return fmt.Errorf("failed to seed profiles: %w", err)
	}

	log("Creating communities...")
	if err := s.seedCommunities(12); err != nil {
		return fmt.Errorf("failed to seed communities: %w", err)
	}

	log("Creating posts...")
	posts, err := s.seedPosts(profiles, 200)
	if err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}

	log("Creating comments...")
	if err := s.seedComments(profiles, posts, 400); err != nil {
		return fmt.Errorf("failed to seed comments: %w", err)
	}

	log("Creating interactions...")
	if err := s.seedInteractions(profiles, posts, 800); err != nil {
		return fmt.Errorf("failed to seed interactions: %w", err)
	}

	log("Creating follows...")
	if err := s.seedFollows(profiles, 150); err != nil {
		return fmt.Errorf("failed to seed follows: %w", err)
	}

	log("Reconciling denormalized counters...")
	if err := s.ReconcileCounters(); err != nil {
		return fmt.Errorf("failed to reconcile counters: %w", err)
	}

	return nil
}

// SeedTest seeds the test database with a small fixed cast.
func (s *Seeder) SeedTest() error {
	specs := []struct {
		username    string
		displayName string
		userType    string
	}{
		{"alice", "Alice Smith", models.UserTypeStudent},
		{"bob", "Bob Johnson", models.UserTypeStudent},
		{"carol", "Carol Davis", models.UserTypeFaculty},
	}

	var profiles []models.Profile
	for _, spec := range specs {
		var existing models.Profile
		err := s.db.Where("username = ?", spec.username).First(&existing).Error
		if err == nil {
			profiles = append(profiles, existing)
			continue
		}

		p := models.Profile{
			DisplayName: spec.displayName,
			Username:    spec.username,
			StudentID:   fmt.Sprintf("S%06d", rand.Intn(1000000)),
			SchoolEmail: spec.username + "@campus.edu",
			UserType:    spec.userType,
		}
		if err := s.db.Create(&p).Error; err != nil {
			return fmt.Errorf("failed to create test profile %s: %w", spec.username, err)
		}
		profiles = append(profiles, p)
	}

	posts, err := s.seedPosts(profiles, 5)
	if err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}
	if err := s.seedComments(profiles, posts, 10); err != nil {
		return fmt.Errorf("failed to seed comments: %w", err)
	}
	return s.ReconcileCounters()
}

// Clean removes all seed data (use with caution!)
func (s *Seeder) Clean() error {
	// Delete in reverse order of dependencies
	tables := []string{
		"follows",
		"bookmarks",
		"reposts",
		"post_likes",
		"comments",
		"posts",
		"communities",
		"profiles",
	}
	for _, table := range tables {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clean %s: %w", table, err)
		}
	}
	return nil
}

func (s *Seeder) seedProfiles(count int) ([]models.Profile, error) {
	var existing []models.Profile
	s.db.Find(&existing)
	if len(existing) >= count {
		logger.Log.Info("Found existing profiles, skipping creation",
			zap.Int("profiles", len(existing)))
		return existing, nil
	}

	profiles := existing
	for i := len(existing); i < count; i++ {
		userType := models.UserTypeStudent
		if rand.Float32() < 0.15 {
			userType = models.UserTypeFaculty
		}
		username := gofakeit.Username()
		p := models.Profile{
			DisplayName: gofakeit.Name(),
			Username:    username,
			StudentID:   fmt.Sprintf("S%06d", rand.Intn(1000000)),
			SchoolEmail: username + "@campus.edu",
			AvatarURL:   fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/png?seed=%s", username),
			UserType:    userType,
		}
		if err := s.db.Create(&p).Error; err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

func (s *Seeder) seedCommunities(count int) error {
	names := []string{
		"Hiking Club", "Robotics Society", "Debate Team", "Film Nights",
		"Campus Gardeners", "Chess Club", "Intramural Soccer", "Jazz Ensemble",
		"Study Abroad Circle", "Makerspace", "Volunteer Corps", "Astronomy Club",
	}
	var existing int64
	s.db.Model(&models.Community{}).Count(&existing)
	if existing > 0 {
		return nil
	}

	for i := 0; i < count && i < len(names); i++ {
		c := models.Community{
			Name:         names[i],
			Description:  gofakeit.Sentence(12),
			Category:     models.Categories[rand.Intn(len(models.Categories))],
			MembersCount: int64(rand.Intn(300)),
		}
		if err := s.db.Create(&c).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedPosts(profiles []models.Profile, count int) ([]models.Post, error) {
	var posts []models.Post
	for i := 0; i < count; i++ {
		author := profiles[rand.Intn(len(profiles))]
		anonymous := rand.Float32() < 0.2
		initials := author.Initials()
		if anonymous {
			initials = "AN"
		}
		p := models.Post{
			AuthorID:       author.ID,
			Content:        gofakeit.HipsterParagraph(),
			Category:       models.Categories[rand.Intn(len(models.Categories))],
			IsAnonymous:    anonymous,
			AuthorInitials: initials,
			CreatedAt:      gofakeit.DateRange(time.Now().AddDate(0, -1, 0), time.Now()),
		}
		if err := s.db.Create(&p).Error; err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func (s *Seeder) seedComments(profiles []models.Profile, posts []models.Post, count int) error {
	for i := 0; i < count; i++ {
		author := profiles[rand.Intn(len(profiles))]
		anonymous := rand.Float32() < 0.25
		c := models.Comment{
			PostID:      posts[rand.Intn(len(posts))].ID,
			UserID:      author.ID,
			Content:     gofakeit.Sentence(10),
			IsAnonymous: anonymous,
		}
		if err := s.db.Create(&c).Error; err != nil {
			return err
		}
	}
	return nil
}

// seedInteractions spreads likes, reposts, and bookmarks over random
// user/post pairs. The unique pair index swallows duplicate picks.
func (s *Seeder) seedInteractions(profiles []models.Profile, posts []models.Post, count int) error {
	for i := 0; i < count; i++ {
		user := profiles[rand.Intn(len(profiles))]
		post := posts[rand.Intn(len(posts))]

		var err error
		switch rand.Intn(3) {
		case 0:
			err = s.db.Create(&models.PostLike{PostID: post.ID, UserID: user.ID}).Error
		case 1:
			err = s.db.Create(&models.Repost{PostID: post.ID, UserID: user.ID}).Error
		default:
			err = s.db.Create(&models.Bookmark{PostID: post.ID, UserID: user.ID}).Error
		}
		if err != nil {
			// Duplicate pair; fine
			continue
		}
	}
	return nil
}

func (s *Seeder) seedFollows(profiles []models.Profile, count int) error {
	for i := 0; i < count; i++ {
		follower := profiles[rand.Intn(len(profiles))]
		following := profiles[rand.Intn(len(profiles))]
		if follower.ID == following.ID {
			continue
		}
		f := models.Follow{FollowerUserID: follower.ID, FollowingUserID: following.ID}
		if err := s.db.Create(&f).Error; err != nil {
			// Duplicate pair; fine
			continue
		}
	}
	return nil
}

// ReconcileCounters rewrites every post's denormalized counters from the
// interaction relations so seeded data starts consistent.
func (s *Seeder) ReconcileCounters() error {
	statements := map[string]string{
		"likes_count":     "post_likes",
		"comments_count":  "comments",
		"reposts_count":   "reposts",
		"bookmarks_count": "bookmarks",
	}
	for column, table := range statements {
		stmt := fmt.Sprintf(
			"UPDATE posts SET %s = (SELECT COUNT(*) FROM %s WHERE %s.post_id = posts.id)",
			column, table, table)
		if err := s.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("reconcile %s: %w", column, err)
		}
	}
	return nil
}
