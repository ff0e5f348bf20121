package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"user-registry/internal/domain"
	"user-registry/internal/repository"
	"user-registry/internal/repository/query"
)

// ListUsersParams carries a list request. A nil Limit selects the configured default.
type ListUsersParams struct {
	Search string
	Limit  *int
	Skip   int
}

// UserPage is one pagination window of a list request.
type UserPage struct {
	Users   []domain.User
	Count   int
	Total   int64
	Skip    int
	Limit   int
	HasMore bool
}

// PageOptions bounds list requests.
type PageOptions struct {
	DefaultLimit int
	MaxLimit     int
}

// UserService describes the user resource operations.
type UserService interface {
	List(ctx context.Context, params ListUsersParams) (*UserPage, error)
	Get(ctx context.Context, id int64) (*domain.User, error)
	Create(ctx context.Context, in CreateUserInput) (*domain.User, error)
	Update(ctx context.Context, id int64, in UpdateUserInput) (*domain.User, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

type userService struct {
	users     repository.UserRepository
	validator *Validator
	page      PageOptions
	logger    logrus.FieldLogger
}

func NewUserService(users repository.UserRepository, page PageOptions, logger logrus.FieldLogger) UserService {
	if page.DefaultLimit <= 0 {
		page.DefaultLimit = query.DefaultLimit
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &userService{
		users:     users,
		validator: NewValidator(),
		page:      page,
		logger:    logger,
	}
}

func (s *userService) List(ctx context.Context, params ListUsersParams) (*UserPage, error) {
	limit := s.page.DefaultLimit
	if params.Limit != nil {
		limit = *params.Limit
	}

	verr := &domain.ValidationError{}
	if limit < 0 {
		verr.Fields = append(verr.Fields, domain.FieldError{Field: "limit", Message: "must be greater than or equal to 0"})
	} else if s.page.MaxLimit > 0 && limit > s.page.MaxLimit {
		verr.Fields = append(verr.Fields, domain.FieldError{Field: "limit", Message: "must be less than or equal to max limit"})
	}
	if params.Skip < 0 {
		verr.Fields = append(verr.Fields, domain.FieldError{Field: "skip", Message: "must be greater than or equal to 0"})
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	users, total, err := s.users.List(ctx, query.ListParams{
		Search: params.Search,
		Limit:  limit,
		Skip:   params.Skip,
	})
	if err != nil {
		return nil, err
	}

	return &UserPage{
		Users:   users,
		Count:   len(users),
		Total:   total,
		Skip:    params.Skip,
		Limit:   limit,
		HasMore: int64(params.Skip+len(users)) < total,
	}, nil
}

func (s *userService) Get(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *userService) Create(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	if err := s.validator.ValidateCreate(in); err != nil {
		return nil, err
	}

	var created *domain.User
	err := s.users.InTx(ctx, func(tx repository.UserTx) error {
		conflict, err := tx.FindConflict(ctx, repository.ConflictQuery{
			Username: &in.Username,
			Email:    &in.Email,
		})
		if err != nil {
			return err
		}
		if conflict {
			return domain.ErrDuplicate
		}

		created, err = tx.Insert(ctx, in.Username, in.Email)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("user_id", created.ID).Info("user created")
	return created, nil
}

func (s *userService) Update(ctx context.Context, id int64, in UpdateUserInput) (*domain.User, error) {
	var updated *domain.User
	err := s.users.InTx(ctx, func(tx repository.UserTx) error {
		ok, err := tx.Exists(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotFound
		}

		if err := s.validator.ValidateUpdate(in); err != nil {
			return err
		}

		changes := in.Changes()
		if changes.IsEmpty() {
			return domain.ErrNoUpdateFields
		}

		// only the fields being changed are checked, so a user keeping its own
		// value never conflicts with itself
		conflict, err := tx.FindConflict(ctx, repository.ConflictQuery{
			Username:  changes.Username,
			Email:     changes.Email,
			ExcludeID: &id,
		})
		if err != nil {
			return err
		}
		if conflict {
			return domain.ErrDuplicate
		}

		updated, err = tx.Update(ctx, id, changes)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("user_id", id).Info("user updated")
	return updated, nil
}

func (s *userService) Delete(ctx context.Context, id int64) (int64, error) {
	var deleted int64
	err := s.users.InTx(ctx, func(tx repository.UserTx) error {
		ok, err := tx.Exists(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotFound
		}

		deleted, err = tx.Delete(ctx, id)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.WithField("user_id", deleted).Info("user deleted")
	return deleted, nil
}
