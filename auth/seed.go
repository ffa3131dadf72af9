package auth

import (
	"context"
	"fmt"
)

// SeedUsers creates a small set of starter accounts for local development:
// two admins and three customers. Skipped when any user already exists.
func (s *Service) SeedUsers(ctx context.Context) error {
	count, err := s.users.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		s.log.Info("users already exist, skipping seed")
		return nil
	}

	seeds := []SignupInput{
		{Name: "Alice", Surname: "Admin", Password: "admin1", Roles: []string{"ADMIN"}},
		{Name: "Bob", Surname: "Admin", Password: "admin2", Roles: []string{"ADMIN"}},
		{Name: "Charlie", Surname: "Customer", Password: "cust1", Roles: []string{"CUSTOMER"}},
		{Name: "Diana", Surname: "Customer", Password: "cust2", Roles: []string{"CUSTOMER"}},
		{Name: "Eve", Surname: "Customer", Password: "cust3", Roles: []string{"CUSTOMER"}},
	}

	for _, seed := range seeds {
		username, err := s.Signup(ctx, seed)
		if err != nil {
			return fmt.Errorf("failed to seed user %s %s: %w", seed.Name, seed.Surname, err)
		}
		s.log.WithField("username", username).Info("seeded user")
	}
	return nil
}
