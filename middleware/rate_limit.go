package middleware

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"

	"github.com/pathwise-labs/progress_api/dto"
	"github.com/pathwise-labs/progress_api/model"
	"github.com/pathwise-labs/progress_api/services"
	"github.com/pathwise-labs/progress_api/shared"
)

type RateLimitMiddleware struct {
	context.DefaultService

	configs  map[string]*model.RateLimitConfig
	mutex    sync.RWMutex
	redisSvc *services.RedisService
}

const RATE_LIMIT_MIDDLEWARE_SVC = "rate_limit"

func (svc *RateLimitMiddleware) Id() string {
	return RATE_LIMIT_MIDDLEWARE_SVC
}

func (svc *RateLimitMiddleware) Configure(ctx *context.Context) error {
	svc.redisSvc = ctx.Service(services.REDIS_SVC).(*services.RedisService)

	svc.configs = make(map[string]*model.RateLimitConfig)
	return svc.DefaultService.Configure(ctx)
}

func (svc *RateLimitMiddleware) Start() error {
	svc.initDefaultConfigs()
	return nil
}

func (svc *RateLimitMiddleware) initDefaultConfigs() {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()

	svc.configs = map[string]*model.RateLimitConfig{
		// Lesson completion - prevent rapid fire completions
		shared.EndpointLessonComplete: {
			EndpointType: shared.EndpointLessonComplete,
			MaxRequests:  30,               // Max 30 lesson completions
			WindowSize:   time.Minute,      // Per minute
			BlockTime:    time.Minute * 10, // Block for 10 minutes
			Identifier:   "learner",
			Description:  "Lesson completion rate limit",
		},

		// Progress reads per learner
		shared.EndpointProgressRead: {
			EndpointType: shared.EndpointProgressRead,
			MaxRequests:  120,         // Max 120 reads
			WindowSize:   time.Minute, // Per minute
			BlockTime:    time.Minute, // Block for 1 minute
			Identifier:   "learner",
			Description:  "Subject progress read rate limit",
		},

		// Structure publication per caller
		shared.EndpointStructurePublish: {
			EndpointType: shared.EndpointStructurePublish,
			MaxRequests:  10,              // Max 10 publications
			WindowSize:   time.Minute,     // Per minute
			BlockTime:    time.Minute * 5, // Block for 5 minutes
			Identifier:   "ip",
			Description:  "Structure publish rate limit",
		},

		// General API calls per IP
		"api_general": {
			EndpointType: "api_general",
			MaxRequests:  1000,      // Max 1000 requests
			WindowSize:   time.Hour, // Per hour
			BlockTime:    time.Hour, // Block for 1 hour
			Identifier:   "ip",
			Description:  "General API rate limit per IP",
		},
	}
}

// IsAllowed counts the request against a fixed redis window. Tripping the
// limit stretches the counter's expiry to the block time.
func (svc *RateLimitMiddleware) IsAllowed(c *fiber.Ctx, identifier, endpointType string) (bool, *dto.RateLimitInfo, error) {
	svc.mutex.RLock()
	config, exists := svc.configs[endpointType]
	svc.mutex.RUnlock()

	if !exists {
		// If no config exists, allow the request
		return true, &dto.RateLimitInfo{
			Allowed:   true,
			Remaining: -1,
		}, nil
	}

	ctx := c.Context()
	key := fmt.Sprintf("ratelimit:%s:%s", endpointType, identifier)

	count, err := svc.redisSvc.Increment(ctx, key)
	if err != nil {
		return false, nil, err
	}
	if count == 1 {
		if err := svc.redisSvc.Expire(ctx, key, config.WindowSize); err != nil {
			return false, nil, err
		}
	}

	if count > int64(config.MaxRequests) {
		if count == int64(config.MaxRequests)+1 {
			// First request over the line starts the block window.
			if err := svc.redisSvc.Expire(ctx, key, config.BlockTime); err != nil {
				return false, nil, err
			}
		}

		ttl, err := svc.redisSvc.TTL(ctx, key)
		if err != nil || ttl < 0 {
			ttl = config.BlockTime
		}
		blockedUntil := time.Now().Add(ttl)
		return false, &dto.RateLimitInfo{
			Allowed:      false,
			Limit:        config.MaxRequests,
			Remaining:    0,
			ResetTime:    &blockedUntil,
			BlockedUntil: &blockedUntil,
		}, nil
	}

	ttl, err := svc.redisSvc.TTL(ctx, key)
	if err != nil || ttl < 0 {
		ttl = config.WindowSize
	}
	resetTime := time.Now().Add(ttl)
	return true, &dto.RateLimitInfo{
		Allowed:   true,
		Limit:     config.MaxRequests,
		Remaining: config.MaxRequests - int(count),
		ResetTime: &resetTime,
	}, nil
}

// limitBy applies one policy, picking the identity the policy asks for.
// Redis trouble fails open: a throttle outage must not take reads down
// with it.
func (svc *RateLimitMiddleware) limitBy(endpointType, failMessage string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := getClientIP(c)
		svc.mutex.RLock()
		config := svc.configs[endpointType]
		svc.mutex.RUnlock()
		if config != nil && config.Identifier == "learner" {
			if learnerID, _ := c.Locals(shared.LearnerID).(string); learnerID != "" {
				identifier = learnerID
			}
		}

		allowed, info, err := svc.IsAllowed(c, identifier, endpointType)
		if err != nil {
			log.Printf("Rate limit check error for %s/%s: %v", endpointType, identifier, err)
			// Continue with request on error to avoid blocking users due to system issues
			return c.Next()
		}

		// Add rate limit headers
		if info.ResetTime != nil {
			c.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
		}
		c.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))

		if !allowed {
			if info.BlockedUntil != nil {
				c.Set("Retry-After", strconv.FormatInt(int64(time.Until(*info.BlockedUntil).Seconds()), 10))
			}
			return shared.NewTooManyRequestsError(nil, failMessage)
		}

		return c.Next()
	}
}

// General rate limiting by IP
func (svc *RateLimitMiddleware) IPRateLimit() fiber.Handler {
	return svc.limitBy("api_general", "Too many requests from this IP address")
}

// Lesson completion rate limiting
func (svc *RateLimitMiddleware) LessonCompletionRateLimit() fiber.Handler {
	return svc.limitBy(shared.EndpointLessonComplete, "Please take a break before completing more lessons")
}

// Progress read rate limiting
func (svc *RateLimitMiddleware) ProgressReadRateLimit() fiber.Handler {
	return svc.limitBy(shared.EndpointProgressRead, "Too many progress requests")
}

// Structure publication rate limiting
func (svc *RateLimitMiddleware) StructurePublishRateLimit() fiber.Handler {
	return svc.limitBy(shared.EndpointStructurePublish, "Too many structure publications")
}

// Utility functions
func getClientIP(c *fiber.Ctx) string {
	// Check for forwarded IP first
	forwarded := c.Get("X-Forwarded-For")
	if forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	// Check for real IP
	realIP := c.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	return c.IP()
}
