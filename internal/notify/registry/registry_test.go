package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinAndMembers(t *testing.T) {
	r := New()
	r.Join("c1", GroupAdmin)
	r.Join("c2", GroupAdmin)
	r.Join("c1", GroupOrder("SO-AAAA0001"))

	assert.ElementsMatch(t, []string{"c1", "c2"}, r.MembersOf(GroupAdmin))
	assert.ElementsMatch(t, []string{"c1"}, r.MembersOf(GroupOrder("SO-AAAA0001")))
	assert.ElementsMatch(t, []string{GroupAdmin, GroupOrder("SO-AAAA0001")}, r.GroupsFor("c1"))
}

func TestJoinIsIdempotent(t *testing.T) {
	r := New()
	r.Join("c1", GroupAdmin)
	r.Join("c1", GroupAdmin)
	assert.Len(t, r.MembersOf(GroupAdmin), 1)
}

func TestLeave(t *testing.T) {
	r := New()
	r.Join("c1", GroupCustomer("u7"))
	r.Join("c1", GroupAdmin)
	r.Leave("c1", GroupCustomer("u7"))

	assert.Empty(t, r.MembersOf(GroupCustomer("u7")))
	assert.ElementsMatch(t, []string{GroupAdmin}, r.GroupsFor("c1"))
}

func TestDropRemovesEveryMembership(t *testing.T) {
	r := New()
	groups := []string{GroupAdmin, GroupCustomer("u7"), GroupOrder("SO-AAAA0001")}
	for _, g := range groups {
		r.Join("c1", g)
		r.Join("c2", g)
	}

	r.Drop("c1")

	assert.Empty(t, r.GroupsFor("c1"))
	for _, g := range groups {
		assert.ElementsMatch(t, []string{"c2"}, r.MembersOf(g), "group %s", g)
	}
}

func TestConcurrentJoinLeave(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := fmt.Sprintf("c%d", i)
			r.Join(connID, GroupAdmin)
			r.Join(connID, GroupOrder("SO-AAAA0001"))
			if i%2 == 0 {
				r.Drop(connID)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.MembersOf(GroupAdmin), 25)
	assert.Len(t, r.MembersOf(GroupOrder("SO-AAAA0001")), 25)
}
