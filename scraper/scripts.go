package scraper

// The remote side of every evaluation is a Chromium page, so the
// injected code is a fixed library of JS function literals with
// JSON-serializable parameters. Scripts only collect raw material
// (markup, rendered text, attribute values); all pattern matching and
// scoring happens on the Go side where it can be unit tested.

// scriptCollectCards tries an ordered list of card container selectors
// and falls back to walking up from price-looking leaf text. Each card
// comes back as its outer HTML, rendered text, and contained links.
const scriptCollectCards = `(selectors) => {
	let cards = [];
	for (const sel of selectors) {
		let found;
		try { found = Array.from(document.querySelectorAll(sel)); } catch (e) { continue; }
		if (found.length >= 3) { cards = found; break; }
		if (found.length > cards.length) cards = found;
	}
	if (cards.length === 0) {
		const leaves = Array.from(document.querySelectorAll('body *')).filter(el =>
			el.children.length === 0 && /\$\s?\d/.test(el.textContent || ''));
		const seen = new Set();
		for (const leaf of leaves) {
			let node = leaf;
			for (let i = 0; i < 4 && node.parentElement && node.parentElement !== document.body; i++) {
				node = node.parentElement;
			}
			if (!seen.has(node)) { seen.add(node); cards.push(node); }
		}
	}
	return cards.slice(0, 200).map(el => ({
		html: el.outerHTML,
		text: el.innerText || '',
		links: Array.from(el.querySelectorAll('a[href]')).map(a => ({
			text: (a.innerText || '').trim(),
			href: a.href
		}))
	}));
}`

// scriptDismissAgeGate clicks the first clickable element whose label
// matches the allow-list. Returns whether anything was clicked.
const scriptDismissAgeGate = `(texts) => {
	const candidates = Array.from(document.querySelectorAll('button, [role="button"], a'));
	for (const el of candidates) {
		const label = (el.innerText || '').trim().toLowerCase();
		if (!label || label.length > 40) continue;
		for (const t of texts) {
			if (label === t || label.includes(t)) { el.click(); return true; }
		}
	}
	return false;
}`

// scriptPageLinks collects every anchor on the page, used to match
// detail URLs to listing products by name.
const scriptPageLinks = `() => {
	return Array.from(document.querySelectorAll('a[href]')).slice(0, 500).map(a => ({
		text: (a.innerText || '').trim(),
		href: a.href
	}));
}`

// scriptDetailProbe gathers the raw inputs of the detail-page heuristic
// chain in one round trip: badge presence, rendered body text, and the
// maximum of any quantity selector.
const scriptDetailProbe = `() => {
	const badgeSel = '.out-of-stock, .sold-out, [class*="out-of-stock"], [class*="sold-out"], [class*="soldout"], [class*="outofstock"]';
	const hasBadge = !!document.querySelector(badgeSel);
	const bodyText = ((document.body && document.body.innerText) || '').slice(0, 20000);

	let dropdownMax = null;
	const select = document.querySelector(
		'select[name*="quant" i], select[id*="quant" i], select[class*="quant" i], select[class*="qty" i]');
	if (select) {
		const values = Array.from(select.options)
			.map(o => parseInt(o.value || o.textContent, 10))
			.filter(n => !isNaN(n));
		if (values.length > 0) dropdownMax = Math.max(...values);
	}
	if (dropdownMax === null) {
		const input = document.querySelector('input[type="number"][max]');
		if (input) {
			const m = parseInt(input.max, 10);
			if (!isNaN(m)) dropdownMax = m;
		}
	}
	return { hasBadge, bodyText, dropdownMax };
}`

// scriptCartProbe provokes a quantity-limit validation message from the
// add-to-cart flow. With a quantity input it sets the sentinel value,
// waits, snapshots the page text, and restores the original value in a
// finally block so the page is left untouched regardless of outcome.
// Without an input it clicks add-to-cart then an increment control.
const scriptCartProbe = `async (sentinel, maxClicks) => {
	const result = { hadInput: false, validationText: '', correctedValue: null };
	const sleep = ms => new Promise(r => setTimeout(r, ms));
	const setValue = (el, v) => {
		el.value = String(v);
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
	};

	const input = document.querySelector(
		'input[name*="quant" i], input[id*="quant" i], input[class*="qty" i], input[type="number"]');
	if (input) {
		result.hadInput = true;
		const original = input.value;
		try {
			setValue(input, sentinel);
			await sleep(500);
			result.validationText = ((document.body && document.body.innerText) || '').slice(0, 20000);
			const corrected = parseInt(input.value, 10);
			if (!isNaN(corrected) && corrected > 0 && corrected < sentinel) {
				result.correctedValue = corrected;
			}
		} finally {
			setValue(input, original);
		}
		return result;
	}

	const buttons = Array.from(document.querySelectorAll('button, [role="button"]'));
	const addBtn = buttons.find(b => /add to (cart|bag)/i.test(b.innerText || ''));
	if (!addBtn) return result;
	addBtn.click();
	await sleep(500);
	const inc = buttons.find(b => {
		const t = (b.innerText || '').trim();
		return t === '+' || /increase|increment/i.test(b.getAttribute('aria-label') || '');
	});
	if (inc) {
		for (let i = 0; i < maxClicks; i++) {
			inc.click();
			await sleep(100);
		}
	}
	result.validationText = ((document.body && document.body.innerText) || '').slice(0, 20000);
	return result;
}`
