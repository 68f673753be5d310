package matchmaking

// matchScript is the whole attemptMatch operation. It runs server-side so
// the check-and-mutate against the rating buckets is indivisible under
// concurrent callers from every gateway process; a client-side
// read-then-write here could double-match or deadlock two mutually
// searching players.
//
// ARGV: playerID, rating, minRating, maxRating, unix-now.
// Reply: {opponentID|'', valid} where valid=0 means the rating was rejected
// and nothing was touched.
//
// Buckets are lists, LPUSH on enqueue and RPOP on claim, so the oldest
// waiting ticket wins. Each ticket records the buckets it occupies; a
// window-widening policy can add buckets without changing this layout.
const matchScript = `
local player = ARGV[1]
local rating = tonumber(ARGV[2])
local minRating = tonumber(ARGV[3])
local maxRating = tonumber(ARGV[4])
local now = ARGV[5]

if rating == nil or rating ~= math.floor(rating) or rating < minRating or rating > maxRating then
  return {'', 0}
end

local function bucketsKey(id) return 'mm:ticket:' .. id .. ':buckets' end
local function ticketKey(id) return 'mm:ticket:' .. id end

local function clearTicket(id)
  local buckets = redis.call('LRANGE', bucketsKey(id), 0, -1)
  for _, b in ipairs(buckets) do
    redis.call('LREM', 'mm:bucket:' .. b, 0, id)
  end
  redis.call('DEL', bucketsKey(id))
  redis.call('DEL', ticketKey(id))
end

local bucketKey = 'mm:bucket:' .. rating

while true do
  local opponent = redis.call('RPOP', bucketKey)
  if not opponent then
    break
  end
  if opponent ~= player then
    clearTicket(opponent)
    clearTicket(player)
    return {opponent, 1}
  end
  -- Popped the caller's own ticket; discard it and keep looking. The
  -- re-enqueue below leaves the caller with exactly one active ticket.
end

clearTicket(player)
redis.call('LPUSH', bucketKey, player)
redis.call('RPUSH', bucketsKey(player), rating)
redis.call('HSET', ticketKey(player), 'rating', rating, 'enqueued_at', now)
return {'', 1}
`

// removeScript clears a player's ticket from every bucket it occupies.
// It runs synchronously with disconnects so a dead player can never be
// handed out as a match.
//
// ARGV: playerID. Reply: number of buckets the ticket occupied.
const removeScript = `
local player = ARGV[1]
local bucketsKey = 'mm:ticket:' .. player .. ':buckets'

local buckets = redis.call('LRANGE', bucketsKey, 0, -1)
for _, b in ipairs(buckets) do
  redis.call('LREM', 'mm:bucket:' .. b, 0, player)
end
redis.call('DEL', bucketsKey)
redis.call('DEL', 'mm:ticket:' .. player)
return #buckets
`
