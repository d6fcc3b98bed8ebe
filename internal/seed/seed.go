// Package seed provides helpers to create demo data for development
// environments. Seeding is explicit: it runs only when the bootstrap layer
// asks for it, never as a side effect of server construction.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"courtyard/internal/middleware"
	"courtyard/internal/models"
	"courtyard/internal/repository"
	"courtyard/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	NumResidents  int
	NumStaff      int
	CommunityName string
}

// Run populates the database with a demo community: residents and staff, the
// community-wide room, a couple of DMs with chatter. Idempotent enough to
// re-run against a non-empty database; users are only added, never duplicated
// by display name.
func Run(ctx context.Context, db *gorm.DB, opts Options) error {
	gofakeit.Seed(time.Now().UnixNano())

	if opts.NumResidents <= 0 {
		opts.NumResidents = 20
	}
	if opts.NumStaff <= 0 {
		opts.NumStaff = 3
	}
	if opts.CommunityName == "" {
		opts.CommunityName = "Community"
	}

	users, err := seedUsers(db, opts)
	if err != nil {
		return fmt.Errorf("seeding users: %w", err)
	}

	roomRepo := repository.NewRoomRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	attRepo := repository.NewAttachmentRepository(db)
	roomSvc := service.NewRoomService(roomRepo, nil, opts.CommunityName)
	msgSvc := service.NewMessageService(msgRepo, roomRepo, attRepo)

	// Community room with every active member.
	active := make([]models.User, 0, len(users))
	ids := make([]uint, 0, len(users))
	for _, u := range users {
		if u.Active {
			active = append(active, u)
			ids = append(ids, u.ID)
		}
	}
	community, err := roomSvc.ReconcileGroup(ctx, opts.CommunityName, ids)
	if err != nil {
		return fmt.Errorf("seeding community room: %w", err)
	}
	for i := 0; i < 5; i++ {
		sender := active[gofakeit.Number(0, len(active)-1)]
		if _, err := msgSvc.Append(ctx, service.AppendInput{
			RoomID:     community.ID,
			SenderID:   sender.ID,
			SenderName: sender.DisplayName,
			Body:       gofakeit.Sentence(gofakeit.Number(4, 12)),
		}); err != nil {
			return fmt.Errorf("seeding community chatter: %w", err)
		}
	}

	// A few DMs between random pairs.
	for i := 0; i < 3 && len(active) > 1; i++ {
		a := active[gofakeit.Number(0, len(active)-1)]
		b := active[gofakeit.Number(0, len(active)-1)]
		if a.ID == b.ID {
			continue
		}
		room, err := roomSvc.ResolveDirect(ctx, a.ID, b.ID)
		if err != nil {
			return fmt.Errorf("seeding dm: %w", err)
		}
		for j := 0; j < gofakeit.Number(1, 4); j++ {
			sender := a
			if j%2 == 1 {
				sender = b
			}
			if _, err := msgSvc.Append(ctx, service.AppendInput{
				RoomID:     room.ID,
				SenderID:   sender.ID,
				SenderName: sender.DisplayName,
				Body:       gofakeit.HipsterSentence(gofakeit.Number(3, 10)),
			}); err != nil {
				return fmt.Errorf("seeding dm chatter: %w", err)
			}
		}
	}

	middleware.Logger.InfoContext(ctx, "demo data seeded",
		slog.Int("users", len(users)),
		slog.Uint64("community_room", uint64(community.ID)),
	)
	return nil
}

func seedUsers(db *gorm.DB, opts Options) ([]models.User, error) {
	users := make([]models.User, 0, opts.NumResidents+opts.NumStaff)

	for i := 0; i < opts.NumResidents; i++ {
		users = append(users, models.User{
			DisplayName: gofakeit.Name(),
			Role:        models.RoleResident,
			Unit:        fmt.Sprintf("%c-%d", 'A'+rune(gofakeit.Number(0, 3)), gofakeit.Number(101, 499)),
			Active:      gofakeit.Number(0, 9) > 0, // about one in ten moved out
		})
	}
	for i := 0; i < opts.NumStaff; i++ {
		role := models.RoleSecurity
		if i == 0 {
			role = models.RoleAdmin
		}
		users = append(users, models.User{
			DisplayName: gofakeit.Name(),
			Role:        role,
			Active:      true,
		})
	}

	for i := range users {
		var existing models.User
		err := db.Where("display_name = ?", users[i].DisplayName).First(&existing).Error
		if err == nil {
			users[i] = existing
			continue
		}
		if err := db.Create(&users[i]).Error; err != nil {
			return nil, err
		}
	}
	return users, nil
}
