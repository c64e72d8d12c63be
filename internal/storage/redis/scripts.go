package redis

import "github.com/redis/go-redis/v9"

// touchScript refreshes a score only for an existing member.
// Returns 1 when updated, 0 when the member is absent.
var touchScript = redis.NewScript(`
if redis.call('ZSCORE', KEYS[1], ARGV[1]) == false then
	return 0
end
redis.call('ZADD', KEYS[1], 'XX', ARGV[2], ARGV[1])
return 1
`)

// deleteStaleScript removes each named member whose score is still <= ARGV[1].
// Returns the removed names.
var deleteStaleScript = redis.NewScript(`
local cutoff = tonumber(ARGV[1])
local removed = {}
for i = 2, #ARGV do
	local score = redis.call('ZSCORE', KEYS[1], ARGV[i])
	if score and tonumber(score) <= cutoff then
		redis.call('ZREM', KEYS[1], ARGV[i])
		table.insert(removed, ARGV[i])
	end
end
return removed
`)
