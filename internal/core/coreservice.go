package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jo-hoe/cmsadmin/internal/admin/content"
	"github.com/jo-hoe/cmsadmin/internal/admin/pages"
	"github.com/jo-hoe/cmsadmin/internal/admin/submissions"
	"github.com/jo-hoe/cmsadmin/internal/backend/database"
	"github.com/jo-hoe/cmsadmin/internal/cache"
	"github.com/jo-hoe/cmsadmin/internal/embeds"
	"github.com/jo-hoe/cmsadmin/internal/images"
	"github.com/jo-hoe/cmsadmin/internal/richtext"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	cache           cache.Cache
	renditions      *images.RenditionService
	finder          embeds.Finder
	converter       *richtext.Converter
	registry        *content.Registry
	editor          *content.Editor
	listing         *pages.ListingView
	submissions     *submissions.Service
}

func NewCoreService(config *ServiceConfig) (*CoreService, error) {
	databaseService, err := getDatabaseService(config)
	if err != nil {
		return nil, err
	}
	service := &CoreService{config: config, databaseService: databaseService}

	service.cache, err = cache.New(context.Background(), config.Cache)
	if err != nil {
		_ = databaseService.Close()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	finder, err := newFinder(config.Embeds)
	if err != nil {
		_ = service.Close()
		return nil, err
	}
	service.finder = embeds.NewCachingFinder(finder, service.cache)

	contentConfig := content.Config{AllowUnicodeSlugs: config.Admin.AllowUnicodeSlugs}
	service.registry, err = content.DefaultRegistry(contentConfig)
	if err != nil {
		_ = service.Close()
		return nil, err
	}

	service.renditions = images.NewRenditionService(databaseService, service.cache, config.Images)
	service.converter = richtext.NewEditorHTMLConverter()
	service.editor = content.NewEditor(databaseService, service.registry, service.converter, contentConfig)
	service.listing = pages.NewListingView(databaseService, pages.ListingConfig{
		PageSize:    config.Admin.ListingPageSize,
		I18nEnabled: config.Admin.I18nEnabled,
	})
	service.submissions = submissions.NewService(databaseService, submissions.Config{
		PageSize:  config.Admin.SubmissionsPageSize,
		FormTypes: service.registry.FormTypes(),
	})
	return service, nil
}

func newFinder(cfg embeds.Config) (*embeds.OEmbedFinder, error) {
	providers := append([]embeds.Provider{}, cfg.Providers...)
	if cfg.ProvidersFile != "" {
		extra, err := embeds.LoadProviders(cfg.ProvidersFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load embed providers: %w", err)
		}
		providers = append(providers, extra...)
	}
	// configured providers are tried before the defaults
	providers = append(providers, embeds.DefaultProviders...)

	var opts []embeds.Option
	if cfg.Timeout > 0 {
		opts = append(opts, embeds.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	finder, err := embeds.NewOEmbedFinder(providers, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embed finder: %w", err)
	}
	return finder, nil
}

func getDatabaseService(config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if _, err := databaseService.CreateDatabase(); err != nil {
		_ = databaseService.Close()
		return nil, fmt.Errorf("failed to create database schema: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)
	return databaseService, nil
}

func (service *CoreService) Config() *ServiceConfig               { return service.config }
func (service *CoreService) Database() database.DatabaseService   { return service.databaseService }
func (service *CoreService) Renditions() *images.RenditionService { return service.renditions }
func (service *CoreService) Finder() embeds.Finder                { return service.finder }
func (service *CoreService) Converter() *richtext.Converter       { return service.converter }
func (service *CoreService) Registry() *content.Registry          { return service.registry }
func (service *CoreService) Editor() *content.Editor              { return service.editor }
func (service *CoreService) Listing() *pages.ListingView          { return service.listing }
func (service *CoreService) Submissions() *submissions.Service    { return service.submissions }

// Authenticate returns the active user matching username and password.
func (service *CoreService) Authenticate(ctx context.Context, username, password string) (*database.User, error) {
	user, err := service.databaseService.GetUserByUsername(ctx, username)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// CreateSuperuser stores an active superuser with a bcrypt password hash.
func (service *CoreService) CreateSuperuser(ctx context.Context, username, password string) (*database.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username must not be blank")
	}
	if password == "" {
		return nil, errors.New("password must not be blank")
	}
	if _, err := service.databaseService.GetUserByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("user %q already exists", username)
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &database.User{Username: username, PasswordHash: string(hash), IsSuperuser: true, IsActive: true}
	if err := service.databaseService.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user %q: %w", username, err)
	}
	slog.Info("superuser created", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// EnsureRootPage creates the tree root and a home page on an empty database.
func (service *CoreService) EnsureRootPage(ctx context.Context) (*database.Page, error) {
	root, err := service.databaseService.GetRootPage(ctx)
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	root = &database.Page{Title: "Root", Slug: "root", ContentType: content.PageType, Live: true}
	if err := service.databaseService.CreateRootPage(ctx, root); err != nil {
		return nil, fmt.Errorf("failed to create root page: %w", err)
	}
	home := &database.Page{Title: "Home", Slug: "home", ContentType: content.HomePageType, Live: true}
	if err := service.databaseService.CreateChildPage(ctx, root.ID, home); err != nil {
		return nil, fmt.Errorf("failed to create home page: %w", err)
	}
	slog.Info("page tree initialized", "root_id", root.ID, "home_id", home.ID)
	return root, nil
}

func (service *CoreService) Close() error {
	var errs []error
	if service.cache != nil {
		errs = append(errs, service.cache.Close())
	}
	if service.databaseService != nil {
		errs = append(errs, service.databaseService.Close())
	}
	return errors.Join(errs...)
}
