package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	appErrors "github.com/frahmantamala/chitfund-crm/internal"
	"github.com/golang-jwt/jwt/v5"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

func TestAuth(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Auth Module Suite")
}

// Mock UserRepository for testing
type mockUserRepository struct {
	users         map[string]*Credentials
	returnError   bool
	errorToReturn error
}

func newMockUserRepository() *mockUserRepository {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("correct_password"), bcrypt.MinCost)

	return &mockUserRepository{
		users: map[string]*Credentials{
			"agent@example.com":   {UserID: 1, Email: "agent@example.com", PasswordHash: string(hashedPassword), IsActive: true},
			"admin@example.com":   {UserID: 2, Email: "admin@example.com", PasswordHash: string(hashedPassword), IsActive: true},
			"retired@example.com": {UserID: 3, Email: "retired@example.com", PasswordHash: string(hashedPassword), IsActive: false},
		},
	}
}

func (m *mockUserRepository) GetCredentials(ctx context.Context, email string) (*Credentials, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}
	return m.users[email], nil
}

func (m *mockUserRepository) GetCredentialsByID(ctx context.Context, userID int64) (*Credentials, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}
	for _, c := range m.users {
		if c.UserID == userID {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepository) setError(err error) {
	m.returnError = true
	m.errorToReturn = err
}

var _ = ginkgo.Describe("AuthService", func() {
	var (
		ctx           context.Context
		service       *Service
		mockRepo      *mockUserRepository
		tokenGen      *JWTTokenGenerator
		accessSecret  string        = "test-access-secret"
		refreshSecret string        = "test-refresh-secret"
		accessTTL     time.Duration = 15 * time.Minute
		refreshTTL    time.Duration = 24 * time.Hour
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		mockRepo = newMockUserRepository()
		tokenGen = NewJWTTokenGenerator(accessSecret, refreshSecret, accessTTL, refreshTTL)
		service = NewService(mockRepo, tokenGen, bcrypt.MinCost, nil)
	})

	ginkgo.Describe("Authenticate", func() {
		ginkgo.Context("when credentials are valid", func() {
			ginkgo.It("should return access and refresh tokens", func() {
				// Given
				dto := LoginDTO{
					Email:    "agent@example.com",
					Password: "correct_password",
				}

				// When
				tokens, err := service.Authenticate(ctx, dto)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(tokens.AccessToken).ToNot(gomega.BeEmpty())
				gomega.Expect(tokens.RefreshToken).ToNot(gomega.BeEmpty())
				gomega.Expect(tokens.AccessToken).ToNot(gomega.Equal(tokens.RefreshToken))
				gomega.Expect(tokens.ExpiresIn).To(gomega.Equal(int64(900)))
			})

			ginkgo.It("should match emails case-insensitively", func() {
				// Given
				dto := LoginDTO{
					Email:    " Admin@Example.com ",
					Password: "correct_password",
				}

				// When
				tokens, err := service.Authenticate(ctx, dto)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				claims, err := service.ValidateAccessToken(tokens.AccessToken)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(claims.UserID).To(gomega.Equal("2"))
				gomega.Expect(claims.Email).To(gomega.Equal("admin@example.com"))
			})
		})

		ginkgo.Context("when credentials are invalid", func() {
			ginkgo.It("should return error for unknown email", func() {
				// Given
				dto := LoginDTO{
					Email:    "nonexistent@example.com",
					Password: "any_password",
				}

				// When
				tokens, err := service.Authenticate(ctx, dto)

				// Then
				gomega.Expect(errors.Is(err, appErrors.ErrInvalidCredentials)).To(gomega.BeTrue())
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})

			ginkgo.It("should return error for invalid password", func() {
				// Given
				dto := LoginDTO{
					Email:    "agent@example.com",
					Password: "wrong_password",
				}

				// When
				_, err := service.Authenticate(ctx, dto)

				// Then
				gomega.Expect(errors.Is(err, appErrors.ErrInvalidCredentials)).To(gomega.BeTrue())
			})

			ginkgo.It("should refuse inactive users", func() {
				// Given
				dto := LoginDTO{
					Email:    "retired@example.com",
					Password: "correct_password",
				}

				// When
				_, err := service.Authenticate(ctx, dto)

				// Then
				gomega.Expect(errors.Is(err, appErrors.ErrUserInactive)).To(gomega.BeTrue())
			})
		})

		ginkgo.Context("when input validation fails", func() {
			ginkgo.It("should return validation error for empty email", func() {
				// Given
				dto := LoginDTO{Password: "password"}

				// When
				_, err := service.Authenticate(ctx, dto)

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(err.Error()).To(gomega.ContainSubstring("email is required"))
			})
		})

		ginkgo.Context("when repository returns error", func() {
			ginkgo.It("should return an internal error", func() {
				// Given
				mockRepo.setError(errors.New("database error"))
				dto := LoginDTO{Email: "agent@example.com", Password: "correct_password"}

				// When
				_, err := service.Authenticate(ctx, dto)

				// Then
				appErr, ok := appErrors.IsAppError(err)
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(appErr.Type).To(gomega.Equal(appErrors.ErrorTypeInternal))
			})
		})
	})

	ginkgo.Describe("RefreshTokens", func() {
		var validRefreshToken string

		ginkgo.BeforeEach(func() {
			tokens, err := service.Authenticate(ctx, LoginDTO{Email: "agent@example.com", Password: "correct_password"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			validRefreshToken = tokens.RefreshToken
		})

		ginkgo.Context("when refresh token is valid", func() {
			ginkgo.It("should return new access and refresh tokens", func() {
				// When
				tokens, err := service.RefreshTokens(ctx, validRefreshToken)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				claims, err := service.ValidateAccessToken(tokens.AccessToken)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(claims.UserID).To(gomega.Equal("1"))
			})

			ginkgo.It("should refuse users deactivated since login", func() {
				// Given
				mockRepo.users["agent@example.com"].IsActive = false

				// When
				_, err := service.RefreshTokens(ctx, validRefreshToken)

				// Then
				gomega.Expect(errors.Is(err, appErrors.ErrUserInactive)).To(gomega.BeTrue())
			})
		})

		ginkgo.Context("when refresh token is invalid", func() {
			ginkgo.It("should return error for malformed token", func() {
				_, err := service.RefreshTokens(ctx, "not.a.token")
				gomega.Expect(errors.Is(err, appErrors.ErrInvalidToken)).To(gomega.BeTrue())
			})

			ginkgo.It("should not accept an access token", func() {
				// Given
				tokens, err := service.Authenticate(ctx, LoginDTO{Email: "agent@example.com", Password: "correct_password"})
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				// When
				_, err = service.RefreshTokens(ctx, tokens.AccessToken)

				// Then
				gomega.Expect(errors.Is(err, appErrors.ErrInvalidToken)).To(gomega.BeTrue())
			})
		})
	})

	ginkgo.Describe("EnsureActive", func() {
		ginkgo.It("distinguishes active, inactive and unknown users", func() {
			gomega.Expect(service.EnsureActive(ctx, 1)).To(gomega.Succeed())
			gomega.Expect(errors.Is(service.EnsureActive(ctx, 3), appErrors.ErrUserInactive)).To(gomega.BeTrue())
			gomega.Expect(errors.Is(service.EnsureActive(ctx, 404), appErrors.ErrInvalidToken)).To(gomega.BeTrue())
		})
	})
})

var _ = ginkgo.Describe("JWTTokenGenerator", func() {
	var tokenGen *JWTTokenGenerator

	ginkgo.BeforeEach(func() {
		tokenGen = NewJWTTokenGenerator("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
	})

	ginkgo.Describe("ValidateAccessToken", func() {
		ginkgo.Context("with valid access token", func() {
			ginkgo.It("should return valid claims", func() {
				// Given
				token, err := tokenGen.GenerateAccessToken("42", "ravi@example.com")
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				// When
				claims, err := tokenGen.ValidateAccessToken(token)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(claims.Email).To(gomega.Equal("ravi@example.com"))
				gomega.Expect(claims.TokenType).To(gomega.Equal(TokenTypeAccess))
				id, err := claims.ID()
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(id).To(gomega.Equal(int64(42)))
			})
		})

		ginkgo.Context("with invalid token", func() {
			ginkgo.It("should reject a refresh token", func() {
				token, err := tokenGen.GenerateRefreshToken("42", "ravi@example.com")
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				_, err = tokenGen.ValidateAccessToken(token)
				gomega.Expect(err).To(gomega.HaveOccurred())
			})

			ginkgo.It("should return error for empty token", func() {
				_, err := tokenGen.ValidateAccessToken("")
				gomega.Expect(errors.Is(err, appErrors.ErrInvalidToken)).To(gomega.BeTrue())
			})

			ginkgo.It("should reject tokens signed with another secret", func() {
				other := NewJWTTokenGenerator("other", "other", time.Minute, time.Minute)
				token, err := other.GenerateAccessToken("42", "ravi@example.com")
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				_, err = tokenGen.ValidateAccessToken(token)
				gomega.Expect(errors.Is(err, appErrors.ErrInvalidToken)).To(gomega.BeTrue())
			})
		})

		ginkgo.Context("with expired token", func() {
			ginkgo.It("should return ErrTokenExpired", func() {
				// Given
				claims := &Claims{
					UserID:    "42",
					TokenType: TokenTypeAccess,
					RegisteredClaims: jwt.RegisteredClaims{
						ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
						IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
					},
				}
				token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tokenGen.AccessTokenSecret)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				// When
				_, err = tokenGen.ValidateAccessToken(token)

				// Then
				gomega.Expect(errors.Is(err, appErrors.ErrTokenExpired)).To(gomega.BeTrue())
			})
		})
	})
})

var _ = ginkgo.Describe("LoginDTO", func() {
	ginkgo.Describe("Validate", func() {
		ginkgo.It("should accept complete credentials", func() {
			dto := LoginDTO{Email: "agent@example.com", Password: "secret"}
			gomega.Expect(dto.Validate()).To(gomega.BeNil())
		})

		ginkgo.It("should require a password", func() {
			dto := LoginDTO{Email: "agent@example.com"}
			appErr := dto.Validate()
			gomega.Expect(appErr).ToNot(gomega.BeNil())
			gomega.Expect(appErr.Error()).To(gomega.ContainSubstring("password is required"))
		})
	})
})

var _ = ginkgo.Describe("RefreshTokenDTO", func() {
	ginkgo.It("should require the token", func() {
		gomega.Expect(RefreshTokenDTO{}.Validate()).ToNot(gomega.BeNil())
		gomega.Expect(RefreshTokenDTO{RefreshToken: "x"}.Validate()).To(gomega.BeNil())
	})
})
