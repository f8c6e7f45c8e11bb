package auth_test

import (
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/ancestrio/family-archive/internal/auth"
	"github.com/ancestrio/family-archive/internal/storage"
)

type mockUserRepository struct {
	users  map[int64]*auth.User
	creds  map[string]*auth.Credentials
	hashes map[int64]string
	nextID int64

	credsError  error
	updateError error
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users:  make(map[int64]*auth.User),
		creds:  make(map[string]*auth.Credentials),
		hashes: make(map[int64]string),
		nextID: 1,
	}
}

func (m *mockUserRepository) addUser(email, password, status string, roleID int64, roleName string, permissions ...string) *auth.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := &auth.User{
		ID:          m.nextID,
		FullName:    "Test User",
		Email:       email,
		Status:      status,
		RoleID:      roleID,
		RoleName:    roleName,
		Permissions: permissions,
	}
	m.users[user.ID] = user
	m.creds[email] = &auth.Credentials{UserID: user.ID, PasswordHash: string(hash), Status: status}
	m.hashes[user.ID] = string(hash)
	m.nextID++
	return user
}

func (m *mockUserRepository) GetCredentialsByEmail(email string) (*auth.Credentials, error) {
	if m.credsError != nil {
		return nil, m.credsError
	}
	creds, ok := m.creds[email]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return creds, nil
}

func (m *mockUserRepository) GetUserWithPermissions(userID int64) (*auth.User, error) {
	user, ok := m.users[userID]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (m *mockUserRepository) CreateUser(fullName, email, passwordHash string) (int64, error) {
	if _, ok := m.creds[email]; ok {
		return 0, auth.ErrEmailTaken
	}
	user := &auth.User{ID: m.nextID, FullName: fullName, Email: email, Status: auth.StatusActive, RoleID: 2, RoleName: "member"}
	m.users[user.ID] = user
	m.creds[email] = &auth.Credentials{UserID: user.ID, PasswordHash: passwordHash, Status: auth.StatusActive}
	m.nextID++
	return user.ID, nil
}

func (m *mockUserRepository) UpdateSessionToken(userID int64, sessionToken string) error {
	if m.updateError != nil {
		return m.updateError
	}
	if user, ok := m.users[userID]; ok {
		user.SessionToken = sessionToken
	}
	return nil
}

func (m *mockUserRepository) ClearSessionToken(userID int64) error {
	if user, ok := m.users[userID]; ok {
		user.SessionToken = ""
	}
	return nil
}

func testGuard() *storage.Guard {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return storage.NewGuard(storage.NewBreaker(time.Second, nil), logger)
}

// guardUser replays the session checks the auth middleware applies once a
// token has been verified.
func guardUser(repo *mockUserRepository, claims *auth.Claims) error {
	user, err := repo.GetUserWithPermissions(claims.UserID)
	if err != nil {
		return err
	}
	if user.Status != auth.StatusActive {
		return auth.ErrAccountDisabled
	}
	if user.SessionToken == "" || user.SessionToken != claims.SessionID {
		return auth.ErrSessionExpired
	}
	return nil
}

var _ = Describe("AuthService", func() {
	var (
		repo    *mockUserRepository
		service *auth.Service
	)

	BeforeEach(func() {
		repo = newMockUserRepository()
		tokens := auth.NewJWTTokenGenerator("0123456789abcdef0123456789abcdef", time.Hour)
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = auth.NewService(repo, tokens, testGuard(), logger, bcrypt.MinCost)
	})

	Describe("Authenticate", func() {
		It("issues a token whose claims match the stored session", func() {
			user := repo.addUser("ada@example.com", "correct-horse", auth.StatusActive, 2, "member")

			resp, err := service.Authenticate(auth.LoginDTO{Email: "ada@example.com", Password: "correct-horse"})

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Token).ToNot(BeEmpty())

			claims, err := service.ValidateAccessToken(resp.Token)
			Expect(err).ToNot(HaveOccurred())
			Expect(claims.UserID).To(Equal(user.ID))
			Expect(claims.SessionID).To(Equal(repo.users[user.ID].SessionToken))
		})

		It("rejects a wrong password", func() {
			repo.addUser("ada@example.com", "correct-horse", auth.StatusActive, 2, "member")

			_, err := service.Authenticate(auth.LoginDTO{Email: "ada@example.com", Password: "wrong"})

			Expect(err).To(MatchError(auth.ErrInvalidCredentials))
		})

		It("rejects unknown accounts with the credentials error, not a lookup error", func() {
			_, err := service.Authenticate(auth.LoginDTO{Email: "ghost@example.com", Password: "whatever"})

			Expect(err).To(MatchError(auth.ErrInvalidCredentials))
		})

		It("rejects disabled accounts", func() {
			repo.addUser("off@example.com", "pw123456", auth.StatusDisabled, 2, "member")

			_, err := service.Authenticate(auth.LoginDTO{Email: "off@example.com", Password: "pw123456"})

			Expect(err).To(MatchError(auth.ErrAccountDisabled))
		})

		It("invalidates the previous session on a second login", func() {
			repo.addUser("ada@example.com", "correct-horse", auth.StatusActive, 2, "member")

			first, err := service.Authenticate(auth.LoginDTO{Email: "ada@example.com", Password: "correct-horse"})
			Expect(err).ToNot(HaveOccurred())
			firstClaims, err := service.ValidateAccessToken(first.Token)
			Expect(err).ToNot(HaveOccurred())

			second, err := service.Authenticate(auth.LoginDTO{Email: "ada@example.com", Password: "correct-horse"})
			Expect(err).ToNot(HaveOccurred())
			secondClaims, err := service.ValidateAccessToken(second.Token)
			Expect(err).ToNot(HaveOccurred())

			// first token still verifies cryptographically but fails the
			// stored-session comparison
			Expect(guardUser(repo, firstClaims)).To(MatchError(auth.ErrSessionExpired))
			Expect(guardUser(repo, secondClaims)).To(Succeed())
		})
	})

	Describe("Signup", func() {
		It("creates an active account and opens a session", func() {
			resp, err := service.Signup(auth.SignupDTO{FullName: "Grace Hopper", Email: "grace@example.com", Password: "longenough"})

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.User.Status).To(Equal(auth.StatusActive))
			Expect(resp.Token).ToNot(BeEmpty())
		})

		It("rejects duplicate emails", func() {
			repo.addUser("grace@example.com", "pw123456", auth.StatusActive, 2, "member")

			_, err := service.Signup(auth.SignupDTO{FullName: "Grace", Email: "grace@example.com", Password: "longenough"})

			Expect(err).To(MatchError(auth.ErrEmailTaken))
		})

		It("rejects short passwords before touching storage", func() {
			_, err := service.Signup(auth.SignupDTO{FullName: "Grace", Email: "grace@example.com", Password: "short"})

			var validationErr auth.ValidationError
			Expect(err).To(BeAssignableToTypeOf(validationErr))
		})
	})

	Describe("Logout", func() {
		It("clears the stored session so outstanding tokens go stale", func() {
			user := repo.addUser("ada@example.com", "correct-horse", auth.StatusActive, 2, "member")

			resp, err := service.Authenticate(auth.LoginDTO{Email: "ada@example.com", Password: "correct-horse"})
			Expect(err).ToNot(HaveOccurred())
			claims, err := service.ValidateAccessToken(resp.Token)
			Expect(err).ToNot(HaveOccurred())

			Expect(service.Logout(user.ID)).To(Succeed())

			Expect(guardUser(repo, claims)).To(MatchError(auth.ErrSessionExpired))
		})
	})

	Describe("ValidateAccessToken", func() {
		It("rejects garbage tokens", func() {
			_, err := service.ValidateAccessToken("not-a-jwt")

			Expect(err).To(MatchError(auth.ErrInvalidToken))
		})

		It("rejects tokens signed with a different secret", func() {
			other := auth.NewJWTTokenGenerator("another-secret-another-secret-32", time.Hour)
			token, err := other.Generate(1, "sid")
			Expect(err).ToNot(HaveOccurred())

			_, err = service.ValidateAccessToken(token)
			Expect(err).To(MatchError(auth.ErrInvalidToken))
		})

		It("rejects expired tokens", func() {
			expired := &auth.JWTTokenGenerator{Secret: []byte("0123456789abcdef0123456789abcdef"), TTL: -time.Minute}
			token, err := expired.Generate(1, "sid")
			Expect(err).ToNot(HaveOccurred())

			_, err = service.ValidateAccessToken(token)
			Expect(err).To(MatchError(auth.ErrInvalidToken))
		})
	})
})

var _ = Describe("User permissions", func() {
	It("grants everything to role id 1", func() {
		admin := &auth.User{ID: 1, RoleID: 1, RoleName: "superuser"}

		Expect(admin.HasPermission(auth.PermManageBooks)).To(BeTrue())
		Expect(admin.HasAnyPermission(auth.PermManageGallery, auth.PermManageAllTrees)).To(BeTrue())
	})

	It("grants everything to the admin role name regardless of case", func() {
		admin := &auth.User{ID: 1, RoleID: 7, RoleName: "Admin"}

		Expect(admin.IsAdmin()).To(BeTrue())
		Expect(admin.HasPermission("anything_at_all")).To(BeTrue())
	})

	It("checks membership for everyone else", func() {
		editor := &auth.User{ID: 2, RoleID: 3, RoleName: "editor", Permissions: []string{auth.PermManageBooks}}

		Expect(editor.HasPermission(auth.PermManageBooks)).To(BeTrue())
		Expect(editor.HasPermission(auth.PermManageGallery)).To(BeFalse())
		Expect(editor.HasAnyPermission(auth.PermManageGallery, auth.PermManageBooks)).To(BeTrue())
		Expect(editor.HasAnyPermission(auth.PermManageGallery, auth.PermManageAllTrees)).To(BeFalse())
	})
})
