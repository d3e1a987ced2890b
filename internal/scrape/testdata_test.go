package scrape

const stockPage = `<!doctype html>
<html><body>
<div>
  <h2 class="text-xl font-bold mb-2 text-center">GEAR STOCK</h2>
  <ul>
    <li class="bg-gray-900"><img alt="Watering Can"><span class="text-gray-400">x3</span></li>
    <li class="bg-gray-900"><img alt="Trowel"><span class="text-gray-400">x1</span></li>
  </ul>
</div>
<div>
  <h2>SEEDS STOCK</h2>
  <p>refreshes every 5 minutes</p>
  <ul>
    <li class="bg-gray-900"><img alt=" Carrot Seed "><span class="text-gray-400"> x5 </span></li>
    <li class="bg-gray-900"><img alt="Tomato Seed"></li>
    <li class="bg-gray-900"><span class="text-gray-400">x2</span></li>
    <li class="bg-gray-900"><img alt="Blueberry Seed"><span class="text-gray-400">x<b>2</b></span></li>
  </ul>
</div>
<div>
  <h2 class="text-xl font-bold mb-2 text-center">EGGS STOCK</h2>
  <ul>
    <li class="bg-gray-900"><img alt="Common Egg"><span class="text-gray-400">x2</span></li>
  </ul>
</div>
<div>
  <h2 class="text-xl font-bold mb-2 text-center">COSMETICS STOCK</h2>
  <ul></ul>
</div>
</body></html>`
